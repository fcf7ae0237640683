package supervisor

import (
	"context"
	"time"
)

// Callback is an in-process alternative to spawning a child command: the
// supervisor invokes it once per attempt with the resolved input value
// and treats a nil error as exit code 0. The callback must honour ctx —
// it is canceled on process timeout, server stop, and OS signals.
type Callback func(ctx context.Context, input any) (any, error)

// invokeCallback runs the callback for one attempt, enforcing
// process.timeout and the stop ratchet the same way a child attempt
// does. timedOut reports that the timeout fired before the callback
// returned; the callback's own result and error are whatever it
// returned after cancellation.
func (s *Supervisor) invokeCallback(ctx context.Context, input any, stopRequested *atomicBool) (result any, timedOut bool, err error) {
	cbCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var timeoutC <-chan time.Time
	if s.opts.Process.Timeout > 0 {
		timer := s.clk.NewTimer(s.opts.Process.Timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		result, err = s.callback(cbCtx, input)
	}()

	stopC := stopRequested.done()
	for {
		select {
		case <-done:
			return result, timedOut, err
		case <-stopC:
			stopC = nil
			cancel()
		case <-timeoutC:
			timeoutC = nil
			timedOut = true
			cancel()
		}
	}
}
