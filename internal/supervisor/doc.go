/*
Package supervisor implements the core orchestration loop: it wraps a child command, mediates its lifecycle against the Task
Management service, and runs its own concurrent helpers under a suture v4
tree. It provides Erlang/OTP-style supervision — automatic restart,
failure isolation, graceful shutdown — for the supervisor's own long-running
goroutines, which is a different concern from the child process lifecycle
(retries, timeouts, signals) implemented in Supervisor.Run itself.

# HelperTree

One flat root supervisor holds every concurrent helper the current attempt
needs:

	supervisor-helpers
	├── heartbeat ticker         (api.heartbeat_interval)
	├── status-update pusher     (updates.status_update_interval)
	├── runtime-metadata refresh (only when the probe is not static)
	├── child-stats sampler      (process.check_interval; per attempt)
	└── status listener          (bound to the current child: added before
	                               spawn, removed after reap)

A crash in one helper is restarted independently of the others; none of
them can take down the child process or the invocation as a whole.

# Usage

	logger := slog.Default()
	tree, err := supervisor.NewHelperTree(logger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	token := tree.Add(myHelper)
	go tree.Serve(ctx)
	...
	tree.RemoveAndWait(token, time.Second)

# Configuration

	config := supervisor.TreeConfig{
	    FailureThreshold: 5.0,              // failures before backoff
	    FailureDecay:     30.0,             // seconds for failures to decay
	    FailureBackoff:   15 * time.Second, // backoff duration
	    ShutdownTimeout:  10 * time.Second, // per-service shutdown timeout
	}

Default values match suture's own production defaults.

# Service interface

Every helper implements suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning nil means the service stopped cleanly and will not be restarted;
returning a non-nil error means it crashed and suture restarts it, subject
to the failure-threshold backoff above; a canceled context means shutdown
was requested and the service should return promptly.
*/
package supervisor
