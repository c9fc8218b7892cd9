package sinktrace

import "testing"

func TestSessionTransition(t *testing.T) {
	s := &Session{Status: StatusArmed}

	s.transition(StatusPaused)
	if s.Status != StatusPaused {
		t.Fatalf("status = %q, want %q", s.Status, StatusPaused)
	}
	s.transition(StatusResumed)
	if s.Status != StatusResumed {
		t.Fatalf("status = %q, want %q", s.Status, StatusResumed)
	}

	// Resumed is terminal.
	s.transition(StatusFailed)
	if s.Status != StatusResumed {
		t.Errorf("terminal session moved to %q", s.Status)
	}
}

func TestSessionTerminalStatesFrozen(t *testing.T) {
	for _, terminal := range []Status{StatusResumed, StatusTimedOut, StatusFailed} {
		s := &Session{Status: terminal}
		s.transition(StatusPaused)
		if s.Status != terminal {
			t.Errorf("%q moved to %q, want frozen", terminal, s.Status)
		}
	}
}
