package types

import "testing"

func TestSimStateString(t *testing.T) {
	cases := map[SimState]string{
		Cash:         "CASH",
		Position:     "POSITION",
		Timeout:      "TIMEOUT",
		SimState(99): "UNKNOWN",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("SimState(%d).String() = %q, want %q", state, got, want)
		}
	}
}

