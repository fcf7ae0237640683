package task

import (
	"testing"
	"time"
)

func int64p(v int64) *int64 { return &v }
func strp(v string) *string { return &v }

func TestNewExecutionAssignsLocalUUID(t *testing.T) {
	a := NewExecution()
	b := NewExecution()

	if a.UUID() == "" {
		t.Fatal("NewExecution() left the UUID empty")
	}
	if a.UUID() == b.UUID() {
		t.Error("two executions share a UUID")
	}
	if a.Status() != statusNew {
		t.Errorf("fresh execution status = %s, want %s", a.Status(), statusNew)
	}

	a.SetUUID("server-assigned")
	if a.UUID() != "server-assigned" {
		t.Errorf("UUID after SetUUID = %s", a.UUID())
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	e := NewExecution()

	if ok := e.Transition(StatusSucceeded); ok {
		t.Error("NEW -> SUCCEEDED was allowed")
	}
	if e.Status() != statusNew {
		t.Errorf("status moved to %s on a rejected transition", e.Status())
	}

	if ok := e.Transition(StatusRunning); !ok {
		t.Fatal("NEW -> RUNNING was rejected")
	}
	if ok := e.Transition(StatusSucceeded); !ok {
		t.Fatal("RUNNING -> SUCCEEDED was rejected")
	}
	if ok := e.Transition(StatusRunning); ok {
		t.Error("SUCCEEDED -> RUNNING was allowed")
	}
}

func TestHeartbeatDoesNotAdvanceStatus(t *testing.T) {
	e := NewExecution()
	e.Transition(StatusRunning)

	at := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	e.Heartbeat(at)

	snap := e.Snapshot()
	if snap.Status != StatusRunning {
		t.Errorf("status after heartbeat = %s, want %s", snap.Status, StatusRunning)
	}
	if !snap.LastHeartbeatAt.Equal(at) {
		t.Errorf("last heartbeat = %v, want %v", snap.LastHeartbeatAt, at)
	}
}

func TestMergeStatusUpdateCountersAreMonotone(t *testing.T) {
	e := NewExecution()
	now := time.Now()

	e.MergeStatusUpdate(StatusUpdate{SuccessCount: int64p(1)}, now)
	e.MergeStatusUpdate(StatusUpdate{SuccessCount: int64p(3)}, now)
	// A duplicate or reordered datagram must not move the counter back.
	e.MergeStatusUpdate(StatusUpdate{SuccessCount: int64p(2)}, now)

	if got := e.Snapshot().Counts.Success; got != 3 {
		t.Errorf("success count = %d, want 3", got)
	}
}

func TestMergeStatusUpdateScalarsAreLastWins(t *testing.T) {
	e := NewExecution()
	now := time.Now()

	e.MergeStatusUpdate(StatusUpdate{LastStatusMessage: strp("loading")}, now)
	e.MergeStatusUpdate(StatusUpdate{LastStatusMessage: strp("done")}, now.Add(time.Second))

	snap := e.Snapshot()
	if snap.LastStatusMessage != "done" {
		t.Errorf("last status message = %q, want %q", snap.LastStatusMessage, "done")
	}
	if !snap.LastAppHeartbeatAt.Equal(now.Add(time.Second)) {
		t.Errorf("app heartbeat = %v, want merge time", snap.LastAppHeartbeatAt)
	}
}

func TestMergeStatusUpdateAbsentFieldsUntouched(t *testing.T) {
	e := NewExecution()
	now := time.Now()

	e.MergeStatusUpdate(StatusUpdate{
		SuccessCount:      int64p(5),
		LastStatusMessage: strp("halfway"),
	}, now)
	e.MergeStatusUpdate(StatusUpdate{ErrorCount: int64p(1)}, now)

	snap := e.Snapshot()
	if snap.Counts.Success != 5 {
		t.Errorf("success count = %d, want 5", snap.Counts.Success)
	}
	if snap.Counts.Error != 1 {
		t.Errorf("error count = %d, want 1", snap.Counts.Error)
	}
	if snap.LastStatusMessage != "halfway" {
		t.Errorf("last status message = %q, want untouched %q", snap.LastStatusMessage, "halfway")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	e := NewExecution()
	e.MergeStatusUpdate(StatusUpdate{ExtraProps: map[string]any{"stage": "extract"}}, time.Now())
	e.SetTailLogs("stderr", []string{"line 1"})

	snap := e.Snapshot()
	snap.ExtraProps["stage"] = "mutated"
	snap.TailLogs["stderr"][0] = "mutated"

	again := e.Snapshot()
	if again.ExtraProps["stage"] != "extract" {
		t.Error("mutating a snapshot's extra props leaked into the execution")
	}
	if again.TailLogs["stderr"][0] != "line 1" {
		t.Error("mutating a snapshot's tail logs leaked into the execution")
	}
}

func TestMarkStartedStopped(t *testing.T) {
	e := NewExecution()
	started := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	stopped := started.Add(42 * time.Second)

	e.MarkStarted(started, 4242, "worker-1")
	e.MarkStopped(stopped, 7)

	snap := e.Snapshot()
	if snap.PID != 4242 || snap.Hostname != "worker-1" {
		t.Errorf("pid/hostname = %d/%q", snap.PID, snap.Hostname)
	}
	if !snap.StartedAt.Equal(started) || !snap.StoppedAt.Equal(stopped) {
		t.Errorf("timestamps = %v/%v", snap.StartedAt, snap.StoppedAt)
	}
	if snap.ExitCode == nil || *snap.ExitCode != 7 {
		t.Errorf("exit code = %v, want 7", snap.ExitCode)
	}
}
