package supervisor

import (
	"context"
	"time"

	"github.com/tomtom215/procsupervisor/internal/apiclient"
	"github.com/tomtom215/procsupervisor/internal/clock"
	"github.com/tomtom215/procsupervisor/internal/logging"
	"github.com/tomtom215/procsupervisor/internal/runtimeinfo"
	"github.com/tomtom215/procsupervisor/internal/task"
)

// serviceFunc adapts a plain Serve-shaped function to suture.Service, for
// the helpers below that have no other state worth a named type.
type serviceFunc func(ctx context.Context) error

func (f serviceFunc) Serve(ctx context.Context) error { return f(ctx) }

// heartbeatService reports the Execution's current counters to the Task
// Management service on a fixed interval and folds the server's response
// back into stop/stopRequested and markedDone.
// stopRequested is written at most once true; it is never reset, since a
// stop request is a one-way ratchet for the life of the invocation.
func heartbeatService(clk clock.Clock, client *apiclient.Client, exec *task.Execution, interval time.Duration, stopRequested *atomicBool, markedDone *atomicBool) serviceFunc {
	return func(ctx context.Context) error {
		if interval <= 0 {
			<-ctx.Done()
			return ctx.Err()
		}
		ticker := clk.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				snap := exec.Snapshot()
				result, err := client.Heartbeat(ctx, exec.UUID(), snap.Counts, snap.LastStatusMessage)
				if err != nil {
					logging.WithComponent("heartbeat").Warn().Err(err).Msg("heartbeat failed")
					continue
				}
				exec.Heartbeat(clk.Now())
				if result.StopRequested {
					stopRequested.set(true)
				}
				if result.MarkedDone {
					markedDone.set(true)
				}
			}
		}
	}
}

// statusUpdateService pushes a partial update (pid, hostname, counters,
// last status message, app-heartbeat timestamp) to the Task Management
// service on the updates.status_update_interval cadence. It is
// independent of the heartbeat: heartbeats are the liveness channel and
// may instruct the supervisor to stop, while these updates only publish
// progress.
func statusUpdateService(clk clock.Clock, client *apiclient.Client, exec *task.Execution, interval time.Duration) serviceFunc {
	return func(ctx context.Context) error {
		ticker := clk.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				snap := exec.Snapshot()
				patch := map[string]any{
					"pid":            snap.PID,
					"hostname":       snap.Hostname,
					"success_count":  snap.Counts.Success,
					"error_count":    snap.Counts.Error,
					"skipped_count":  snap.Counts.Skipped,
					"expected_count": snap.Counts.Expected,
				}
				if snap.LastStatusMessage != "" {
					patch["last_status_message"] = snap.LastStatusMessage
				}
				if !snap.LastAppHeartbeatAt.IsZero() {
					patch["last_app_heartbeat_at"] = snap.LastAppHeartbeatAt.Format(time.RFC3339)
				}
				if err := client.Update(ctx, exec.UUID(), patch); err != nil {
					logging.WithComponent("status_update").Warn().Err(err).Msg("status update failed")
				}
			}
		}
	}
}

// childStatsService samples the running child's resource usage on the
// process.check_interval cadence and folds it into the execution's
// extra properties, where the next heartbeat or status update picks it
// up. A failed probe is skipped: the child usually exited between the
// reap and the tick.
func childStatsService(clk clock.Clock, exec *task.Execution, pid int, interval time.Duration) serviceFunc {
	return func(ctx context.Context) error {
		ticker := clk.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				stats, err := runtimeinfo.ProbeChild(ctx, pid)
				if err != nil {
					continue
				}
				exec.MergeExtraProps(map[string]any{
					"child_rss_bytes":   stats.RSSBytes,
					"child_vms_bytes":   stats.VMSBytes,
					"child_cpu_percent": stats.CPUPercent,
				})
			}
		}
	}
}

// atomicBool is a one-way sentinel shared between the heartbeat helper and
// the main Run loop, backed by a channel that set closes: get polls it,
// and done exposes the channel so Run and invokeCallback can select on it.
type atomicBool struct {
	ch chan struct{}
}

func newAtomicBool() *atomicBool {
	return &atomicBool{ch: make(chan struct{})}
}

func (a *atomicBool) set(v bool) {
	if !v {
		return
	}
	select {
	case <-a.ch:
	default:
		close(a.ch)
	}
}

func (a *atomicBool) get() bool {
	select {
	case <-a.ch:
		return true
	default:
		return false
	}
}

func (a *atomicBool) done() <-chan struct{} { return a.ch }
