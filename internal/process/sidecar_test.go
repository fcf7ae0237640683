package process

import (
	"context"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

type fakeRuntime struct {
	exitAfter  int32
	polls      atomic.Int32
	signaled   atomic.Int32
	lastSignal syscall.Signal
}

func (r *fakeRuntime) WaitUntil(ctx context.Context, predicate func() (bool, error), deadline time.Time) error {
	for {
		ok, err := predicate()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (r *fakeRuntime) Signal(ctx context.Context, containerName string, sig syscall.Signal) error {
	r.signaled.Add(1)
	r.lastSignal = sig
	return nil
}

func (r *fakeRuntime) ExitCode(ctx context.Context, containerName string) (int, bool, error) {
	if r.polls.Add(1) >= r.exitAfter {
		return 7, true, nil
	}
	return 0, false, nil
}

func TestSidecarWaitReturnsExitCodeOncePredicateTrue(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{exitAfter: 3}
	h := AttachSidecar(rt, "peer")

	code, timedOut, err := h.Wait(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if timedOut {
		t.Error("expected timedOut = false")
	}
	if code != 7 {
		t.Errorf("exit code = %d, want 7", code)
	}
}

func TestSidecarSignalDelegatesToRuntime(t *testing.T) {
	t.Parallel()

	rt := &fakeRuntime{}
	h := AttachSidecar(rt, "peer")

	if err := h.Signal(context.Background(), syscall.SIGTERM); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if rt.signaled.Load() != 1 || rt.lastSignal != syscall.SIGTERM {
		t.Errorf("signal not delegated correctly: count=%d sig=%v", rt.signaled.Load(), rt.lastSignal)
	}
}
