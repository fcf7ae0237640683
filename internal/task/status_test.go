package task

import "testing"

func TestTerminal(t *testing.T) {
	terminal := []Status{
		StatusSucceeded, StatusFailed, StatusTerminatedAfterTimeout,
		StatusStopped, StatusExitedAfterMarkedDone, StatusAbandoned,
	}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}

	nonTerminal := []Status{
		statusNew, statusRegistering, StatusManuallyStarted,
		StatusRunning, StatusMarkedDone, StatusStopping,
	}
	for _, s := range nonTerminal {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		// The registration path.
		{statusNew, statusRegistering, true},
		{statusNew, StatusRunning, true},
		{statusNew, StatusAbandoned, true},
		{statusRegistering, StatusRunning, true},
		{statusRegistering, StatusFailed, true},
		{statusRegistering, StatusAbandoned, true},

		// Run outcomes.
		{StatusRunning, StatusSucceeded, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusTerminatedAfterTimeout, true},
		{StatusRunning, StatusStopping, true},
		{StatusRunning, StatusMarkedDone, true},
		{StatusRunning, StatusRunning, true}, // retry re-entry

		// Stop and marked-done paths.
		{StatusStopping, StatusStopped, true},
		{StatusMarkedDone, StatusExitedAfterMarkedDone, true},
		{StatusMarkedDone, StatusMarkedDone, true},

		// Illegal edges.
		{statusNew, StatusSucceeded, false},
		{statusNew, StatusMarkedDone, false},
		{StatusMarkedDone, StatusRunning, false},
		{StatusStopping, StatusRunning, false},
		{StatusSucceeded, StatusRunning, false},
		{StatusSucceeded, StatusSucceeded, false}, // terminal: not even self-affirmation
		{StatusFailed, StatusFailed, false},
		{StatusStopped, StatusStopping, false},
		{StatusAbandoned, StatusRunning, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
