package queue

import (
	"testing"

	"github.com/evdnx/backtester/event"
)

func ev(id uint64, ts int64, bar uint32) event.Event {
	return event.Event{Envelope: event.Envelope{ID: id, Timestamp: ts, BarIndex: bar}}
}

func TestPushPopOrdering(t *testing.T) {
	q := New()
	q.Push(ev(1, 10, 0))
	q.Push(ev(2, 5, 0))
	q.Push(ev(3, 5, 0))

	first, ok := q.Pop()
	if !ok || first.ID != 2 {
		t.Fatalf("expected id 2 first (tie broken by insertion order), got %+v ok=%v", first, ok)
	}
	second, ok := q.Pop()
	if !ok || second.ID != 3 {
		t.Fatalf("expected id 3 second, got %+v", second)
	}
	third, ok := q.Pop()
	if !ok || third.ID != 1 {
		t.Fatalf("expected id 1 last, got %+v", third)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected queue to be empty")
	}
}

func TestPushAllBulkHeapify(t *testing.T) {
	q := New()
	q.PushAll([]event.Event{ev(5, 30, 0), ev(6, 10, 0), ev(7, 20, 0)})
	if q.Size() != 3 {
		t.Fatalf("expected size 3, got %d", q.Size())
	}
	first, _ := q.Pop()
	if first.ID != 6 {
		t.Fatalf("expected id 6 first, got %d", first.ID)
	}
}

func TestMarkDeadSkippedOnPop(t *testing.T) {
	q := New()
	q.PushAll([]event.Event{ev(1, 1, 0), ev(2, 2, 0), ev(3, 3, 0)})

	if !q.MarkDead(2) {
		t.Fatal("expected MarkDead to report known id")
	}
	// idempotent
	if !q.MarkDead(2) {
		t.Fatal("expected second MarkDead to still report true for known id")
	}
	if q.MarkDead(999) {
		t.Fatal("expected MarkDead on unknown id to return false")
	}

	first, ok := q.Pop()
	if !ok || first.ID != 1 {
		t.Fatalf("expected id 1, got %+v", first)
	}
	second, ok := q.Pop()
	if !ok || second.ID != 3 {
		t.Fatalf("expected dead id 2 skipped, got %+v", second)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected queue drained")
	}
}

func TestLiveSizeAndIsEmpty(t *testing.T) {
	q := New()
	q.PushAll([]event.Event{ev(1, 1, 0), ev(2, 2, 0)})
	q.MarkDead(1)
	if q.Size() != 2 {
		t.Fatalf("expected total size 2, got %d", q.Size())
	}
	if q.LiveSize() != 1 {
		t.Fatalf("expected live size 1, got %d", q.LiveSize())
	}
	if q.IsEmpty() {
		t.Fatal("expected not empty while a live event remains")
	}
	q.MarkDead(2)
	if !q.IsEmpty() {
		t.Fatal("expected empty once all events are dead")
	}
}

func TestPeekDoesNotRemoveLiveEvent(t *testing.T) {
	q := New()
	q.PushAll([]event.Event{ev(1, 1, 0), ev(2, 2, 0)})
	first, ok := q.Peek()
	if !ok || first.ID != 1 {
		t.Fatalf("expected peek id 1, got %+v", first)
	}
	if q.Size() != 2 {
		t.Fatalf("expected peek to leave size unchanged, got %d", q.Size())
	}
}

func TestClear(t *testing.T) {
	q := New()
	q.PushAll([]event.Event{ev(1, 1, 0)})
	q.Clear()
	if q.Size() != 0 || !q.IsEmpty() {
		t.Fatal("expected cleared queue to be empty")
	}
}


