package task

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Counts holds the monotone progress counters merged in from heartbeats,
// API updates, and Status Listener datagrams.
type Counts struct {
	Success  int64
	Error    int64
	Skipped  int64
	Expected int64
}

// Execution is the mutable state of a single run of a Task. Reads and
// writes go through the accessor methods, which hold a mutex, because the
// Status Listener goroutine and the Supervisor's heartbeat path touch it
// concurrently.
type Execution struct {
	mu sync.Mutex

	uuid   string
	status Status

	startedAt time.Time
	stoppedAt time.Time

	exitCode *int
	pid      int
	hostname string

	lastHeartbeatAt    time.Time
	lastAppHeartbeatAt time.Time

	counts            Counts
	lastStatusMessage string
	extraProps        map[string]any

	inputValue  any
	resultValue any

	runtimeMetadata map[string]any
	tailLogs        map[string][]string
}

// NewExecution creates a fresh Execution in the internal NEW state, with
// a locally-assigned UUID. A managed registration replaces it with the
// server's; offline and unmanaged runs keep the local one so log lines
// and status updates still carry an identifier.
func NewExecution() *Execution {
	return &Execution{
		uuid:       uuid.NewString(),
		status:     statusNew,
		extraProps: make(map[string]any),
	}
}

// UUID returns the server- or locally-assigned execution identifier.
func (e *Execution) UUID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.uuid
}

// SetUUID records the execution UUID, typically returned by create_execution.
func (e *Execution) SetUUID(uuid string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.uuid = uuid
}

// Status returns the current lifecycle status.
func (e *Execution) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Transition moves the execution to a new status, validating the edge
// against the state machine. It returns false (and leaves
// the status unchanged) if the edge is not legal.
func (e *Execution) Transition(to Status) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !CanTransition(e.status, to) {
		return false
	}
	e.status = to
	return true
}

// MarkStarted records the start timestamp, pid, and hostname once the
// child (or callback) begins running.
func (e *Execution) MarkStarted(startedAt time.Time, pid int, hostname string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startedAt = startedAt
	e.pid = pid
	e.hostname = hostname
}

// MarkStopped records the stop timestamp and exit code.
func (e *Execution) MarkStopped(stoppedAt time.Time, exitCode int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stoppedAt = stoppedAt
	e.exitCode = &exitCode
}

// Heartbeat updates only the heartbeat timestamp; it never advances
// status.
func (e *Execution) Heartbeat(at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastHeartbeatAt = at
}

// AppHeartbeat records the last time the child reported progress via the
// Status Listener, independent of the supervisor's own heartbeat cadence.
func (e *Execution) AppHeartbeat(at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastAppHeartbeatAt = at
}

// MergeStatusUpdate applies a Status Listener datagram:
// scalars are last-wins, counters are max-wins so an out-of-order or
// duplicate datagram can never move a monotone counter backwards.
func (e *Execution) MergeStatusUpdate(u StatusUpdate, at time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if u.SuccessCount != nil {
		e.counts.Success = maxInt64(e.counts.Success, *u.SuccessCount)
	}
	if u.ErrorCount != nil {
		e.counts.Error = maxInt64(e.counts.Error, *u.ErrorCount)
	}
	if u.SkippedCount != nil {
		e.counts.Skipped = maxInt64(e.counts.Skipped, *u.SkippedCount)
	}
	if u.ExpectedCount != nil {
		e.counts.Expected = maxInt64(e.counts.Expected, *u.ExpectedCount)
	}
	if u.LastStatusMessage != nil {
		e.lastStatusMessage = *u.LastStatusMessage
	}
	for k, v := range u.ExtraProps {
		e.extraProps[k] = v
	}
	e.lastAppHeartbeatAt = at
}

// MergeExtraProps folds supervisor-observed properties (e.g. sampled
// child resource usage) into the extra-props map. Unlike
// MergeStatusUpdate it does not touch the app-heartbeat timestamp: the
// child did not report anything.
func (e *Execution) MergeExtraProps(props map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, v := range props {
		e.extraProps[k] = v
	}
}

// Snapshot is an immutable copy of Execution state, safe to read without
// holding the lock, used to build API requests.
type Snapshot struct {
	UUID               string
	Status             Status
	StartedAt          time.Time
	StoppedAt          time.Time
	ExitCode           *int
	PID                int
	Hostname           string
	LastHeartbeatAt    time.Time
	LastAppHeartbeatAt time.Time
	Counts             Counts
	LastStatusMessage  string
	ExtraProps         map[string]any
	InputValue         any
	ResultValue        any
	RuntimeMetadata    map[string]any
	TailLogs           map[string][]string
}

// Snapshot copies the current state out from under the lock.
func (e *Execution) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	extra := make(map[string]any, len(e.extraProps))
	for k, v := range e.extraProps {
		extra[k] = v
	}
	tails := make(map[string][]string, len(e.tailLogs))
	for k, v := range e.tailLogs {
		cp := make([]string, len(v))
		copy(cp, v)
		tails[k] = cp
	}

	return Snapshot{
		UUID:               e.uuid,
		Status:             e.status,
		StartedAt:          e.startedAt,
		StoppedAt:          e.stoppedAt,
		ExitCode:           e.exitCode,
		PID:                e.pid,
		Hostname:           e.hostname,
		LastHeartbeatAt:    e.lastHeartbeatAt,
		LastAppHeartbeatAt: e.lastAppHeartbeatAt,
		Counts:             e.counts,
		LastStatusMessage:  e.lastStatusMessage,
		ExtraProps:         extra,
		InputValue:         e.inputValue,
		ResultValue:        e.resultValue,
		RuntimeMetadata:    e.runtimeMetadata,
		TailLogs:           tails,
	}
}

// SetInputValue records the parsed input value passed to the child.
func (e *Execution) SetInputValue(v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.inputValue = v
}

// SetResultValue records the parsed result value read back from the
// result file, if any.
func (e *Execution) SetResultValue(v any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resultValue = v
}

// SetRuntimeMetadata records the descriptor map from the Runtime Metadata
// Probe.
func (e *Execution) SetRuntimeMetadata(m map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.runtimeMetadata = m
}

// SetTailLogs attaches the captured log tail for the given outcome stream
// name ("stdout", "stderr", or "combined").
func (e *Execution) SetTailLogs(stream string, lines []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tailLogs == nil {
		e.tailLogs = make(map[string][]string)
	}
	e.tailLogs[stream] = lines
}

// StatusUpdate is a decoded Status Listener datagram.
// Pointer fields distinguish "absent" from the zero value.
type StatusUpdate struct {
	SuccessCount      *int64         `json:"success_count,omitempty"`
	ErrorCount        *int64         `json:"error_count,omitempty"`
	SkippedCount      *int64         `json:"skipped_count,omitempty"`
	ExpectedCount     *int64         `json:"expected_count,omitempty"`
	LastStatusMessage *string        `json:"last_status_message,omitempty"`
	ExtraProps        map[string]any `json:"extra_props,omitempty"`
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
