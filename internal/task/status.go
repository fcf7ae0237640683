package task

// Status is the lifecycle state of a TaskExecution.
type Status string

const (
	StatusManuallyStarted        Status = "MANUALLY_STARTED"
	StatusRunning                Status = "RUNNING"
	StatusSucceeded              Status = "SUCCEEDED"
	StatusFailed                 Status = "FAILED"
	StatusTerminatedAfterTimeout Status = "TERMINATED_AFTER_TIME_OUT"
	StatusMarkedDone             Status = "MARKED_DONE"
	StatusStopping               Status = "STOPPING"
	StatusStopped                Status = "STOPPED"
	StatusExitedAfterMarkedDone  Status = "EXITED_AFTER_MARKED_DONE"
	StatusAbandoned              Status = "ABANDONED"

	// statusNew is the internal-only pre-registration state. It is never
	// reported to the Task Management service.
	statusNew Status = "NEW"
	// statusRegistering is the internal-only state while create_execution
	// is in flight.
	statusRegistering Status = "REGISTERING"
)

// Terminal reports whether a status is a terminal outcome: once reached, no
// further transition (other than reporting) is valid.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTerminatedAfterTimeout,
		StatusStopped, StatusExitedAfterMarkedDone, StatusAbandoned:
		return true
	default:
		return false
	}
}

// transitions enumerates the allowed edges of the state machine.
// The internal NEW/REGISTERING states are included so Supervisor can
// validate its own bookkeeping; they are never persisted to the service.
var transitions = map[Status]map[Status]bool{
	statusNew: {
		statusRegistering: true,
		StatusRunning:     true, // offline mode skips registration entirely
		StatusAbandoned:   true, // registration failed and prevent_offline_execution aborted the invocation
	},
	statusRegistering: {
		StatusRunning:   true,
		StatusFailed:    true,
		StatusAbandoned: true,
	},
	StatusRunning: {
		StatusRunning:                true, // retry: re-enter RUNNING for next attempt
		StatusSucceeded:              true,
		StatusFailed:                 true,
		StatusTerminatedAfterTimeout: true,
		StatusStopping:               true,
		StatusMarkedDone:             true,
	},
	StatusMarkedDone: {
		StatusExitedAfterMarkedDone: true,
		StatusMarkedDone:            true, // repeated marked-done heartbeats
	},
	StatusStopping: {
		StatusStopped: true,
	},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal edge
// of the state machine.
func CanTransition(from, to Status) bool {
	if from == to {
		// Heartbeats never advance status; re-affirming the
		// current status is always legal except once terminal.
		return !from.Terminal()
	}
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}
