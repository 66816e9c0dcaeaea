package session

import "testing"

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateAcquiring, "ACQUIRING"},
		{StateStarting, "STARTING"},
		{StateActive, "ACTIVE"},
		{StateStopping, "STOPPING"},
		{StateStopped, "STOPPED"},
		{StateFailed, "FAILED"},
		{State(42), "UNKNOWN(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	for _, s := range []State{StateIdle, StateAcquiring, StateStarting, StateActive, StateStopping} {
		if s.IsTerminal() {
			t.Errorf("%v should not be terminal", s)
		}
	}
	for _, s := range []State{StateStopped, StateFailed} {
		if !s.IsTerminal() {
			t.Errorf("%v should be terminal", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to State }{
		{StateIdle, StateAcquiring},
		{StateAcquiring, StateStarting},
		{StateAcquiring, StateFailed},
		{StateStarting, StateActive},
		{StateStarting, StateFailed},
		{StateActive, StateStopping},
		{StateActive, StateStopped},
		{StateActive, StateFailed},
		{StateStopping, StateStopped},
		{StateStopping, StateFailed},
	}
	for _, tt := range allowed {
		if !CanTransition(tt.from, tt.to) {
			t.Errorf("expected %v → %v to be allowed", tt.from, tt.to)
		}
	}

	denied := []struct{ from, to State }{
		{StateIdle, StateActive},
		{StateAcquiring, StateActive},
		{StateStopped, StateActive},
		{StateStopped, StateStopping},
		{StateFailed, StateAcquiring},
		{StateStopping, StateActive},
	}
	for _, tt := range denied {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("expected %v → %v to be denied", tt.from, tt.to)
		}
	}
}
