package process

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Spec describes the child command to spawn.
type Spec struct {
	CommandLine        []string
	WorkDir            string
	Env                []string
	ShellMode          ShellMode
	StripShellWrapping bool
	// ProcessGroup starts the child as the leader of its own process
	// group so Signal can reach the whole tree it spawns, not just the
	// immediate child.
	ProcessGroup bool
}

// Handle is a running (or exited) child process.
type Handle struct {
	cmd        *exec.Cmd
	ownedGroup bool

	// reapOnce guards the single exec.Cmd.Wait call; Wait may be called
	// more than once (the grace-period wait and the post-kill reap), but
	// the underlying process may only be reaped once.
	reapOnce sync.Once
	reaped   chan struct{}
	waitErr  error
}

// Spawn starts the child described by spec, copying its stdout/stderr into
// the given writers (normally an internal/logtail.Tail's Stdout/Stderr).
func Spawn(spec Spec, stdout, stderr io.Writer) (*Handle, error) {
	argv := resolveArgv(spec.CommandLine, spec.ShellMode, spec.StripShellWrapping)
	if len(argv) == 0 {
		return nil, errors.New("process: empty command line")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = spec.WorkDir
	cmd.Env = spec.Env
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if spec.ProcessGroup {
		cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &Handle{cmd: cmd, ownedGroup: spec.ProcessGroup, reaped: make(chan struct{})}, nil
}

// PID returns the child's process ID.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Signal delivers sig to the child. When groupOnly is set and the child was
// spawned with Spec.ProcessGroup, the signal targets the whole process
// group (negative PID), matching the default of signaling the
// group rather than just the leader. groupOnly is ignored for a child that
// was not given its own process group, since it would otherwise target the
// supervisor's own group.
func (h *Handle) Signal(sig syscall.Signal, groupOnly bool) error {
	pid := h.cmd.Process.Pid
	if groupOnly && h.ownedGroup {
		pid = -pid
	}
	err := syscall.Kill(pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// Wait blocks until the child exits, the deadline elapses, or ctx is
// canceled. It never kills the child itself — callers needing a hard
// deadline should follow a timed-out Wait with ForceKill.
func (h *Handle) Wait(ctx context.Context, deadline time.Duration) (exitCode int, timedOut bool, err error) {
	h.reapOnce.Do(func() {
		go func() {
			h.waitErr = h.cmd.Wait()
			close(h.reaped)
		}()
	})

	var timer *time.Timer
	var timerC <-chan time.Time
	if deadline > 0 {
		timer = time.NewTimer(deadline)
		timerC = timer.C
		defer timer.Stop()
	}

	select {
	case <-h.reaped:
		return exitCodeOf(h.waitErr), false, nil
	case <-timerC:
		return 0, true, nil
	case <-ctx.Done():
		// The child is still running; the caller follows a canceled Wait
		// with Terminate, whose own Wait reaps it.
		return 0, false, ctx.Err()
	}
}

// exitCodeOf extracts the child's exit code from exec.Cmd.Wait's error,
// including the signaled-with-no-exit-code case (the "exit code" is -1
// when the child was killed by a signal rather than exiting normally).
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
	}
	return -1
}

// ForceKill sends SIGKILL to the child's process group, or to the child
// alone when it was not spawned with a group of its own.
func (h *Handle) ForceKill() error {
	return h.Signal(syscall.SIGKILL, true)
}

// Terminate runs the termination protocol: signal the
// process group, wait up to gracePeriod for a clean exit, then force-kill
// and reap. The caller's ctx is usually already canceled by the time the
// protocol runs — that cancellation is what triggered it — so the waits
// run on a detached context: the grace period must still elapse and the
// kill step must still fire, or the child is never reaped.
func Terminate(ctx context.Context, h *Handle, sig syscall.Signal, gracePeriod time.Duration) (exitCode int, killed bool, err error) {
	waitCtx := context.WithoutCancel(ctx)

	if sigErr := h.Signal(sig, true); sigErr != nil {
		return 0, false, sigErr
	}

	code, timedOut, waitErr := h.Wait(waitCtx, gracePeriod)
	if waitErr != nil {
		return 0, false, waitErr
	}
	if !timedOut {
		return code, false, nil
	}

	if killErr := h.ForceKill(); killErr != nil {
		return 0, true, killErr
	}
	code, _, waitErr = h.Wait(waitCtx, 0)
	return code, true, waitErr
}
