// Package queue implements the priority-queue-based scheduler (C3): a
// min-heap over event.Event keyed by (timestamp, bar_index, id) with an
// id→slot side index enabling O(1) dead-event cancellation without
// re-sifting the heap.
package queue

import (
	"container/heap"

	"github.com/evdnx/backtester/event"
)

// EventQueue is a min-heap over event.Event. The zero value is not usable;
// construct with New.
type EventQueue struct {
	items []event.Event
	index map[uint64]int // event id -> slot in items
}

// New returns an empty queue.
func New() *EventQueue {
	return &EventQueue{index: make(map[uint64]int)}
}

// Push inserts a single event, O(log n).
func (q *EventQueue) Push(e event.Event) {
	heap.Push((*heapAdapter)(q), e)
}

// PushAll bulk-loads a batch of events with a single O(n) heapify, used to
// seed the queue with C4's initial event batch.
func (q *EventQueue) PushAll(events []event.Event) {
	for _, e := range events {
		q.items = append(q.items, e)
		q.index[e.ID] = len(q.items) - 1
	}
	heap.Init((*heapAdapter)(q))
}

// Pop repeatedly extracts the root, discarding dead events, and returns the
// first live one. Returns false when the queue is exhausted.
func (q *EventQueue) Pop() (event.Event, bool) {
	for q.items != nil && len(q.items) > 0 {
		e := heap.Pop((*heapAdapter)(q)).(event.Event)
		if !e.Dead {
			return e, true
		}
	}
	return event.Event{}, false
}

// PopCountingDead behaves like Pop but also reports how many dead events
// were discarded along the way, for callers that surface a dead-events-
// skipped statistic (spec.md §4.6's Stats.DeadEventsSkipped).
func (q *EventQueue) PopCountingDead() (event.Event, int, bool) {
	skipped := 0
	for q.items != nil && len(q.items) > 0 {
		e := heap.Pop((*heapAdapter)(q)).(event.Event)
		if !e.Dead {
			return e, skipped, true
		}
		skipped++
	}
	return event.Event{}, skipped, false
}

// Peek returns the current live root without removing it, discarding any
// dead events found on top along the way.
func (q *EventQueue) Peek() (event.Event, bool) {
	for len(q.items) > 0 {
		top := q.items[0]
		if !top.Dead {
			return top, true
		}
		heap.Pop((*heapAdapter)(q))
	}
	return event.Event{}, false
}

// MarkDead flips the is_dead bit for the given event id in place, O(1) via
// the side index. It is idempotent: marking an already-dead or unknown id
// is a no-op. Returns true iff the id was known.
func (q *EventQueue) MarkDead(id uint64) bool {
	slot, ok := q.index[id]
	if !ok {
		return false
	}
	q.items[slot].Dead = true
	return true
}

// Size returns the total number of events still held, live and dead.
func (q *EventQueue) Size() int {
	return len(q.items)
}

// LiveSize returns the number of non-dead events still held. O(n); intended
// for diagnostics and tests, not the hot path.
func (q *EventQueue) LiveSize() int {
	n := 0
	for _, e := range q.items {
		if !e.Dead {
			n++
		}
	}
	return n
}

// IsEmpty reports whether the queue has no live events left.
func (q *EventQueue) IsEmpty() bool {
	return q.LiveSize() == 0
}

// Clear empties the queue, releasing all held events.
func (q *EventQueue) Clear() {
	q.items = nil
	q.index = make(map[uint64]int)
}

// heapAdapter implements container/heap.Interface over EventQueue's
// backing slice, keeping the side index in sync on every Swap/Push/Pop so
// MarkDead's O(1) lookup stays valid across heap mutations.
type heapAdapter EventQueue

func (h *heapAdapter) Len() int { return len(h.items) }

func (h *heapAdapter) Less(i, j int) bool {
	return event.Less(h.items[i], h.items[j])
}

func (h *heapAdapter) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.index[h.items[i].ID] = i
	h.index[h.items[j].ID] = j
}

func (h *heapAdapter) Push(x any) {
	e := x.(event.Event)
	h.items = append(h.items, e)
	h.index[e.ID] = len(h.items) - 1
}

func (h *heapAdapter) Pop() any {
	old := h.items
	n := len(old)
	e := old[n-1]
	h.items = old[:n-1]
	delete(h.index, e.ID)
	return e
}


