package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig bounds how aggressively the helper tree restarts a crashing
// helper before backing off.
type TreeConfig struct {
	// FailureThreshold is the failure budget before the tree enters
	// backoff instead of restarting immediately.
	FailureThreshold float64

	// FailureDecay is the half-life, in seconds, over which accumulated
	// failures are forgotten.
	FailureDecay float64

	// FailureBackoff is how long the tree pauses once the budget is
	// spent.
	FailureBackoff time.Duration

	// ShutdownTimeout caps how long a helper may take to stop once asked.
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns suture's own restart-budget defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// HelperTree runs the supervisor's concurrent helpers — the heartbeat
// ticker, the runtime-metadata refresh loop, and the per-attempt Status
// Listener — as suture.Service children of one flat root supervisor.
// Each helper restarts independently of the others and of the child
// process itself: a Status Listener crash never takes down the heartbeat
// loop.
type HelperTree struct {
	root   *suture.Supervisor
	config TreeConfig
}

// NewHelperTree builds the tree. Lifecycle events (restarts, backoff,
// failure to stop) are reported through logger via the sutureslog hook.
func NewHelperTree(logger *slog.Logger, config TreeConfig) (*HelperTree, error) {
	defaults := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = defaults.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = defaults.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}

	hook := (&sutureslog.Handler{Logger: logger}).MustHook()
	root := suture.New("supervisor-helpers", suture.Spec{
		EventHook:        hook,
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	})

	return &HelperTree{root: root, config: config}, nil
}

// Add registers a helper, returning a token for RemoveAndWait.
func (t *HelperTree) Add(svc suture.Service) suture.ServiceToken {
	return t.root.Add(svc)
}

// Serve runs the tree until ctx is canceled.
func (t *HelperTree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// RemoveAndWait removes a helper and waits until it has fully stopped.
// Run uses it to tear down the per-attempt Status Listener between
// retries, since the listener's lifecycle is bound to the current child
// rather than the whole invocation.
func (t *HelperTree) RemoveAndWait(token suture.ServiceToken, timeout time.Duration) error {
	return t.root.RemoveAndWait(token, timeout)
}

// UnstoppedServiceReport lists helpers that failed to stop within the
// shutdown timeout. Run consults it after tearing the tree down.
func (t *HelperTree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
