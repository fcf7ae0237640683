package process

import (
	"context"
	"syscall"
	"time"
)

// ContainerRuntime is the capability a sidecar/container-peer mode needs
// from its host orchestrator: a wait_until(predicate, deadline) adapter,
// resolved here as an explicit interface rather than a concrete SDK, so
// this stays a seam callers implement against their own orchestrator's
// API.
type ContainerRuntime interface {
	// WaitUntil blocks until predicate reports true, an error, or deadline
	// passes.
	WaitUntil(ctx context.Context, predicate func() (bool, error), deadline time.Time) error
	Signal(ctx context.Context, containerName string, sig syscall.Signal) error
	ExitCode(ctx context.Context, containerName string) (code int, exited bool, err error)
}

// SidecarHandle is a Handle substitute for sidecar/container-peer mode:
// rather than spawning, the executor attaches to an already-running
// named peer container and mediates its lifecycle through runtime.
type SidecarHandle struct {
	runtime       ContainerRuntime
	containerName string
}

// AttachSidecar attaches to an existing peer container instead of spawning
// a child process.
func AttachSidecar(runtime ContainerRuntime, containerName string) *SidecarHandle {
	return &SidecarHandle{runtime: runtime, containerName: containerName}
}

func (h *SidecarHandle) Signal(ctx context.Context, sig syscall.Signal) error {
	return h.runtime.Signal(ctx, h.containerName, sig)
}

// Wait blocks until the peer container exits or deadline elapses.
func (h *SidecarHandle) Wait(ctx context.Context, deadline time.Duration) (exitCode int, timedOut bool, err error) {
	var dl time.Time
	if deadline > 0 {
		dl = time.Now().Add(deadline)
	}

	exited := false
	err = h.runtime.WaitUntil(ctx, func() (bool, error) {
		code, ok, exitErr := h.runtime.ExitCode(ctx, h.containerName)
		if exitErr != nil {
			return false, exitErr
		}
		if ok {
			exitCode, exited = code, true
			return true, nil
		}
		return false, nil
	}, dl)

	if err != nil {
		return 0, false, err
	}
	return exitCode, !exited, nil
}
