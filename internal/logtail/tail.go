package logtail

import (
	"io"

	"github.com/tomtom215/procsupervisor/internal/task"
)

// Config configures a Tail.
type Config struct {
	NumLinesOnSuccess int
	NumLinesOnFailure int
	NumLinesOnTimeout int
	MaxLineLength     int
	MergeStreams      bool
}

// Tail owns the stdout/stderr ring buffers for one child execution
//. When Config.MergeStreams is set, Stdout and Stderr
// write to the same underlying buffer.
type Tail struct {
	cfg    Config
	stdout *Buffer
	stderr *Buffer
}

// New builds a Tail sized to hold the largest of the three per-outcome
// line limits, so whichever outcome applies at finalize time can read
// back that many lines without having discarded them early.
func New(cfg Config) *Tail {
	capacity := cfg.NumLinesOnSuccess
	if cfg.NumLinesOnFailure > capacity {
		capacity = cfg.NumLinesOnFailure
	}
	if cfg.NumLinesOnTimeout > capacity {
		capacity = cfg.NumLinesOnTimeout
	}

	stdout := NewBuffer(capacity, cfg.MaxLineLength)
	stderr := stdout
	if !cfg.MergeStreams {
		stderr = NewBuffer(capacity, cfg.MaxLineLength)
	}
	return &Tail{cfg: cfg, stdout: stdout, stderr: stderr}
}

// Stdout returns the writer the Process Executor should copy the
// child's stdout into.
func (t *Tail) Stdout() io.Writer { return t.stdout }

// Stderr returns the writer the Process Executor should copy the
// child's stderr into (the same writer as Stdout when streams are
// merged).
func (t *Tail) Stderr() io.Writer { return t.stderr }

// Flush flushes any buffered partial line on both streams, called once
// the child's output pipes have closed.
func (t *Tail) Flush() {
	t.stdout.Flush()
	if t.stderr != t.stdout {
		t.stderr.Flush()
	}
}

// limitFor picks the per-outcome line count: on a terminal event, the
// buffer for the matching outcome is attached to the finalize call.
func (t *Tail) limitFor(status task.Status) int {
	switch status {
	case task.StatusSucceeded, task.StatusExitedAfterMarkedDone:
		return t.cfg.NumLinesOnSuccess
	case task.StatusTerminatedAfterTimeout:
		return t.cfg.NumLinesOnTimeout
	default:
		return t.cfg.NumLinesOnFailure
	}
}

// ForOutcome returns the tail lines to attach to the finalize call for
// the given terminal status, keyed by stream name ("stdout"/"stderr", or
// "combined" when streams are merged). A zero or negative limit for the
// outcome means no tail is attached at all — it must not fall through to
// Buffer.Tail, whose n<=0 convention is "every buffered line".
func (t *Tail) ForOutcome(status task.Status) map[string][]string {
	n := t.limitFor(status)
	if n <= 0 {
		return nil
	}
	if t.stderr == t.stdout {
		return map[string][]string{"combined": t.stdout.Tail(n)}
	}
	return map[string][]string{
		"stdout": t.stdout.Tail(n),
		"stderr": t.stderr.Tail(n),
	}
}
