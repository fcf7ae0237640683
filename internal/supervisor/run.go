package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/procsupervisor/internal/apiclient"
	"github.com/tomtom215/procsupervisor/internal/clock"
	"github.com/tomtom215/procsupervisor/internal/config"
	"github.com/tomtom215/procsupervisor/internal/configresolver"
	"github.com/tomtom215/procsupervisor/internal/jsonpath"
	"github.com/tomtom215/procsupervisor/internal/logging"
	"github.com/tomtom215/procsupervisor/internal/logtail"
	"github.com/tomtom215/procsupervisor/internal/process"
	"github.com/tomtom215/procsupervisor/internal/runtimeinfo"
	"github.com/tomtom215/procsupervisor/internal/secret"
	"github.com/tomtom215/procsupervisor/internal/statuslistener"
	"github.com/tomtom215/procsupervisor/internal/task"
)

// ErrExitAfterWritingVariables is returned by Run when
// configuration.exit_after_writing_variables is set: the env/config
// output files were written and the child was never spawned. It is not a failure; cmd/supervisor exits 0.
var ErrExitAfterWritingVariables = errors.New("supervisor: exit after writing variables")

// ExitCodeTimeout is the reserved exit code Run returns when the
// supervisor terminates the child after process.timeout elapses,
// distinct from any exit code the child itself could return.
const ExitCodeTimeout = 75

// Deps lets a caller substitute the Supervisor's collaborators, primarily
// for tests: a fixed clock and sampler make retries/backoff/sampling
// deterministic, and an explicit APIClient lets tests point at an
// httptest.Server instead of a real Task Management endpoint.
type Deps struct {
	Clock     clock.Clock
	Sampler   *clock.Sampler
	APIClient *apiclient.Client
	Registry  *secret.Registry
	Probe     *runtimeinfo.Probe
	Logger    *slog.Logger

	// Callback, when non-nil, replaces the child command: each attempt
	// invokes it in-process instead of spawning process.command_line.
	Callback Callback
}

// Supervisor runs the orchestration algorithm: resolve
// configuration, decide online/offline mode, register with the Task
// Management service, spawn and retry the child, and finalize exactly
// once.
type Supervisor struct {
	opts     config.Options
	identity task.Identity

	clk       clock.Clock
	sampler   *clock.Sampler
	apiClient *apiclient.Client
	resolver  *configresolver.Resolver
	fetcher   *secret.Fetcher
	probe     *runtimeinfo.Probe
	callback  Callback

	tree *HelperTree

	resolvedEnv    map[string]string
	callbackResult any
}

// New builds a Supervisor from opts, filling in production collaborators
// for anything deps leaves zero.
func New(opts config.Options, deps Deps) (*Supervisor, error) {
	clk := deps.Clock
	if clk == nil {
		clk = clock.System{}
	}
	sampler := deps.Sampler
	if sampler == nil {
		sampler = clock.NewSampler()
	}

	apiClient := deps.APIClient
	if apiClient == nil {
		apiClient = apiclient.New(apiOptionsFrom(opts.API), clk, sampler)
	}

	probe := deps.Probe
	if probe == nil {
		probe = runtimeinfo.New(nil)
	}

	logger := deps.Logger
	if logger == nil {
		logger = logging.NewSlogLogger()
	}
	tree, err := NewHelperTree(logger, DefaultTreeConfig())
	if err != nil {
		return nil, config.NewConfigError("build helper tree: %v", err)
	}

	s := &Supervisor{
		opts:      opts,
		identity:  buildIdentity(opts.Task),
		clk:       clk,
		sampler:   sampler,
		apiClient: apiClient,
		probe:     probe,
		callback:  deps.Callback,
		tree:      tree,
	}

	// The registry's CONFIG-provider adapter is wired to s.configLookup, a
	// bound method value resolved lazily: it is only ever invoked once a
	// Resolve call is in flight, and it reads s.opts as it stands then —
	// the bootstrap Options, not the env/config documents being resolved.
	registry := deps.Registry
	if registry == nil {
		registry = secret.NewRegistry(s.configLookup)
	}
	fetcher, err := secret.NewFetcher(registry, clk, opts.Configuration.ConfigTTL)
	if err != nil {
		return nil, config.NewConfigError("build secret fetcher: %v", err)
	}
	s.fetcher = fetcher
	s.resolver = configresolver.NewResolver(fetcher)

	return s, nil
}

func apiOptionsFrom(o config.APIOptions) apiclient.Options {
	return apiclient.Options{
		BaseURL:                    o.BaseURL,
		APIKey:                     o.APIKey,
		RequestTimeout:             o.RequestTimeout,
		HeartbeatErrorTimeout:      o.ErrorTimeout,
		RetryDelay:                 o.RetryDelay,
		ResumeDelay:                o.ResumeDelay,
		CreationErrorTimeout:       o.CreationErrorTimeout,
		CreationConflictTimeout:    o.CreationConflictTimeout,
		CreationConflictRetryDelay: o.CreationConflictRetryDelay,
		FinalUpdateTimeout:         o.FinalUpdateTimeout,
		OfflineMode:                o.OfflineMode,
		PreventOfflineExecution:    o.PreventOfflineExecution,
		APIManagedProbability:      o.APIManagedProbability,
		FailureReportProbability:   o.FailureReportProbability,
		TimeoutReportProbability:   o.TimeoutReportProbability,
	}
}

// Close releases the Supervisor's background resources (the secret
// cache). Call it once Run has returned.
func (s *Supervisor) Close() {
	s.fetcher.Close()
}

// Run executes one invocation end to end and reports the terminal status,
// the exit code to propagate, the parsed result value (if any), and an
// error for anything that aborted the invocation before or outside the
// normal state machine (a *config.ConfigError, *config.ResolutionError,
// *config.InvariantError, or ErrExitAfterWritingVariables; or, with
// status ABANDONED, a wrapped registration error when
// prevent_offline_execution is set).
func (s *Supervisor) Run(ctx context.Context) (task.Status, int, any, error) {
	exec := task.NewExecution()
	ctx = logging.ContextWithScope(ctx, logging.Scope{TaskName: s.identity.Name})

	if err := s.resolveConfiguration(ctx); err != nil {
		return "", 1, nil, err
	}
	if s.opts.Configuration.ExitAfterWritingVariables {
		return "", 0, nil, ErrExitAfterWritingVariables
	}

	inputValue, err := resolveInputValue(s.opts.IO)
	if err != nil {
		return "", 1, nil, config.NewConfigError("resolve input value: %v", err)
	}
	exec.SetInputValue(inputValue)
	if s.opts.Log.LogInputValue && inputValue != nil {
		logging.Ctx(ctx).Debug().Interface("input_value", inputValue).Msg("input value resolved")
	}

	descriptor := s.probe.Snapshot()
	exec.SetRuntimeMetadata(descriptorToMap(descriptor))

	childEnv := os.Environ()
	for k, v := range s.resolvedEnv {
		childEnv = append(childEnv, k+"="+v)
	}
	if s.opts.IO.InputEnvVarName != "" {
		projected, perr := projectInputEnv(inputValue)
		if perr != nil {
			return "", 1, nil, config.NewConfigError("project input value to environment: %v", perr)
		}
		childEnv = append(childEnv, s.opts.IO.InputEnvVarName+"="+projected)
	}

	treeCtx, treeCancel := context.WithCancel(ctx)
	treeDone := make(chan struct{})
	go func() {
		defer close(treeDone)
		_ = s.tree.Serve(treeCtx)
	}()
	defer func() {
		treeCancel()
		<-treeDone
		if report, rerr := s.tree.UnstoppedServiceReport(); rerr == nil {
			for _, unstopped := range report {
				logging.Warn().Str("helper", unstopped.Name).Msg("supervisor: helper did not stop within shutdown timeout")
			}
		}
	}()

	if s.opts.API.RuntimeMetadataRefreshInterval > 0 {
		s.tree.Add(s.runtimeRefreshService(exec))
	}

	offline := s.opts.API.OfflineMode
	managed := false
	if !offline {
		managed = s.apiClient.ShouldManage()
	}

	markedDoneAtCreation := false
	if !offline && managed {
		uuid, serverFlags, cerr := s.apiClient.CreateExecution(ctx, s.identity, s.identity.InstanceMetadata, inputValue)
		if cerr != nil {
			if s.opts.API.PreventOfflineExecution {
				exec.Transition(task.StatusAbandoned)
				return task.StatusAbandoned, 1, nil, fmt.Errorf("supervisor: registration failed and prevent_offline_execution is set: %w", cerr)
			}
			logging.Warn().Err(cerr).Msg("supervisor: registration failed, falling back to unmanaged execution")
			managed = false
		} else {
			exec.SetUUID(uuid)
			ctx = logging.ContextWithScope(ctx, logging.Scope{TaskName: s.identity.Name, ExecutionUUID: uuid})
			if md, ok := serverFlags["marked_done"].(bool); ok && md {
				markedDoneAtCreation = true
			}
		}
	}
	exec.Transition(task.StatusRunning)

	stopRequested := newAtomicBool()
	markedDone := newAtomicBool()
	if markedDoneAtCreation {
		// The server had already marked this execution done before it
		// started; the child still runs and its exit is reported as
		// EXITED_AFTER_MARKED_DONE.
		exec.Transition(task.StatusMarkedDone)
		markedDone.set(true)
	}
	if managed && s.opts.API.HeartbeatInterval > 0 {
		s.tree.Add(heartbeatService(s.clk, s.apiClient, exec, s.opts.API.HeartbeatInterval, stopRequested, markedDone))
	}
	if managed && s.opts.Updates.StatusUpdateInterval > 0 {
		s.tree.Add(statusUpdateService(s.clk, s.apiClient, exec, s.opts.Updates.StatusUpdateInterval))
	}

	finalStatus, finalExitCode, timedOut, tailLogs := s.runAttempts(ctx, exec, childEnv, stopRequested, markedDone)
	for stream, lines := range tailLogs {
		exec.SetTailLogs(stream, lines)
	}

	var resultValue any
	if s.callback != nil {
		resultValue = s.callbackResult
	} else {
		var rerr error
		resultValue, rerr = readResultValue(s.opts.IO)
		if rerr != nil {
			logging.Ctx(ctx).Warn().Err(rerr).Msg("supervisor: reading result value failed")
		}
	}
	exec.SetResultValue(resultValue)
	if s.opts.Log.LogResultValue && resultValue != nil {
		logging.Ctx(ctx).Debug().Interface("result_value", resultValue).Msg("result value read")
	}

	s.finalize(ctx, exec, managed, offline, timedOut, finalStatus, finalExitCode, resultValue, tailLogs, inputValue)

	if s.opts.IO.CleanupInputFile && s.opts.IO.InputFilename != "" {
		cleanupFile(s.opts.IO.InputFilename)
	}
	if !s.opts.IO.NoCleanupResultFile && s.opts.IO.ResultFilename != "" {
		cleanupFile(s.opts.IO.ResultFilename)
	}

	return finalStatus, finalExitCode, resultValue, nil
}

// runAttempts runs the child command (or the in-process callback) up to
// process.max_retries+1 times, implementing the retry/timeout/stop edges
// of the state machine.
func (s *Supervisor) runAttempts(ctx context.Context, exec *task.Execution, childEnv []string, stopRequested, markedDone *atomicBool) (task.Status, int, bool, map[string][]string) {
	maxAttempts := s.opts.Process.MaxRetries + 1
	hostname, _ := os.Hostname()
	pacer := process.NewRetryPacer(s.opts.Process.RetryDelay)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		attemptCtx := logging.ContextWithScope(ctx, logging.Scope{
			TaskName:      s.identity.Name,
			ExecutionUUID: exec.UUID(),
			Attempt:       attempt + 1,
		})
		if ctx.Err() != nil {
			exec.Transition(task.StatusStopping)
			exec.Transition(task.StatusStopped)
			return task.StatusStopped, 1, false, nil
		}

		if s.callback != nil {
			exec.MarkStarted(s.clk.Now(), os.Getpid(), hostname)
			exec.Transition(task.StatusRunning)

			result, timedOutNow, cbErr := s.invokeCallback(ctx, exec.Snapshot().InputValue, stopRequested)
			switch {
			case timedOutNow:
				exec.MarkStopped(s.clk.Now(), -1)
				exec.Transition(task.StatusTerminatedAfterTimeout)
				return task.StatusTerminatedAfterTimeout, ExitCodeTimeout, true, nil

			case cbErr != nil && (ctx.Err() != nil || stopRequested.get()):
				exec.MarkStopped(s.clk.Now(), 1)
				exec.Transition(task.StatusStopping)
				exec.Transition(task.StatusStopped)
				return task.StatusStopped, 1, false, nil

			case cbErr == nil:
				s.callbackResult = result
				exec.MarkStopped(s.clk.Now(), 0)
				if markedDone.get() {
					exec.Transition(task.StatusMarkedDone)
					exec.Transition(task.StatusExitedAfterMarkedDone)
					return task.StatusExitedAfterMarkedDone, 0, false, nil
				}
				exec.Transition(task.StatusSucceeded)
				return task.StatusSucceeded, 0, false, nil

			default:
				exec.MarkStopped(s.clk.Now(), 1)
				if attempt+1 >= maxAttempts {
					exec.Transition(task.StatusFailed)
					return task.StatusFailed, 1, false, nil
				}
				logging.Ctx(attemptCtx).Warn().Err(cbErr).Msg("supervisor: callback failed, retrying")
				if pacer.Wait(ctx) != nil {
					exec.Transition(task.StatusStopping)
					exec.Transition(task.StatusStopped)
					return task.StatusStopped, 1, false, nil
				}
			}
			continue
		}

		tail := logtail.New(logtail.Config{
			NumLinesOnSuccess: s.opts.Log.NumLogLinesOnSuccess,
			NumLinesOnFailure: s.opts.Log.NumLogLinesOnFailure,
			NumLinesOnTimeout: s.opts.Log.NumLogLinesOnTimeout,
			MaxLineLength:     s.opts.Log.MaxLogLineLength,
			MergeStreams:      !s.opts.Log.SeparateStdoutStderrLogs,
		})

		spec := process.Spec{
			CommandLine:        s.opts.Process.CommandLine,
			WorkDir:            s.opts.Process.WorkDir,
			Env:                childEnv,
			ShellMode:          process.ShellMode(s.opts.Process.ShellMode),
			StripShellWrapping: s.opts.Process.StripShellWrapping,
			ProcessGroup:       s.opts.Process.ProcessGroupTermination,
		}

		handle, err := process.Spawn(spec, tail.Stdout(), tail.Stderr())
		if err != nil {
			logging.Ctx(attemptCtx).Error().Err(err).Msg("supervisor: failed to spawn child")
			exec.MarkStopped(s.clk.Now(), -1)
			exec.Transition(task.StatusFailed)
			return task.StatusFailed, 1, false, tail.ForOutcome(task.StatusFailed)
		}

		exec.MarkStarted(s.clk.Now(), handle.PID(), hostname)
		exec.Transition(task.StatusRunning)

		var listenerToken suture.ServiceToken
		var hasListener bool
		if s.opts.Updates.EnableStatusUpdateListener {
			listenerToken = s.tree.Add(statuslistener.New(s.opts.Updates.StatusUpdateSocketPort, s.opts.Updates.StatusUpdateMessageMaxBytes, exec, s.clk))
			hasListener = true
		}
		var statsToken suture.ServiceToken
		var hasStats bool
		if s.opts.Process.CheckInterval > 0 {
			statsToken = s.tree.Add(childStatsService(s.clk, exec, handle.PID(), s.opts.Process.CheckInterval))
			hasStats = true
		}

		waitCtx, cancelWait := context.WithCancel(ctx)
		stopWatchDone := make(chan struct{})
		go func() {
			defer close(stopWatchDone)
			select {
			case <-stopRequested.done():
				cancelWait()
			case <-waitCtx.Done():
			}
		}()

		exitCode, timedOutNow, waitErr := handle.Wait(waitCtx, s.opts.Process.Timeout)
		cancelWait()
		<-stopWatchDone
		tail.Flush()

		if hasStats {
			_ = s.tree.RemoveAndWait(statsToken, s.opts.Process.TerminationGracePeriod)
		}
		if hasListener {
			_ = s.tree.RemoveAndWait(listenerToken, s.opts.Process.TerminationGracePeriod)
		}

		switch {
		case timedOutNow:
			_, _, _ = process.Terminate(ctx, handle, syscall.SIGTERM, s.opts.Process.TerminationGracePeriod)
			exec.MarkStopped(s.clk.Now(), -1)
			exec.Transition(task.StatusTerminatedAfterTimeout)
			return task.StatusTerminatedAfterTimeout, ExitCodeTimeout, true, tail.ForOutcome(task.StatusTerminatedAfterTimeout)

		case waitErr != nil:
			code, _, terr := process.Terminate(ctx, handle, syscall.SIGTERM, s.opts.Process.TerminationGracePeriod)
			if terr != nil {
				code = -1
			}
			exec.MarkStopped(s.clk.Now(), code)
			exec.Transition(task.StatusStopping)
			exec.Transition(task.StatusStopped)
			return task.StatusStopped, code, false, tail.ForOutcome(task.StatusStopped)

		case exitCode == 0:
			exec.MarkStopped(s.clk.Now(), 0)
			if markedDone.get() {
				exec.Transition(task.StatusMarkedDone)
				exec.Transition(task.StatusExitedAfterMarkedDone)
				return task.StatusExitedAfterMarkedDone, 0, false, tail.ForOutcome(task.StatusExitedAfterMarkedDone)
			}
			exec.Transition(task.StatusSucceeded)
			return task.StatusSucceeded, 0, false, tail.ForOutcome(task.StatusSucceeded)

		default:
			exec.MarkStopped(s.clk.Now(), exitCode)
			if attempt+1 >= maxAttempts {
				exec.Transition(task.StatusFailed)
				return task.StatusFailed, exitCode, false, tail.ForOutcome(task.StatusFailed)
			}
			logging.Ctx(attemptCtx).Warn().Int("exit_code", exitCode).Msg("supervisor: child exited non-zero, retrying")
			if pacer.Wait(ctx) != nil {
				exec.Transition(task.StatusStopping)
				exec.Transition(task.StatusStopped)
				return task.StatusStopped, exitCode, false, tail.ForOutcome(task.StatusStopped)
			}
		}
	}

	exec.Transition(task.StatusFailed)
	return task.StatusFailed, 1, false, nil
}

// finalize sends the single terminal update for this invocation, including the unmanaged late-report path for an execution that
// was never registered but ended in failure or timeout.
func (s *Supervisor) finalize(ctx context.Context, exec *task.Execution, managed, offline, timedOut bool, status task.Status, exitCode int, resultValue any, tailLogs map[string][]string, inputValue any) {
	if offline {
		return
	}

	finalizeCtx := ctx
	if ctx.Err() != nil {
		finalizeCtx = context.Background()
	}

	if managed {
		if err := s.apiClient.Finalize(finalizeCtx, exec.UUID(), status, &exitCode, resultValue, tailLogs); err != nil {
			logging.Error().Err(err).Msg("supervisor: finalize failed")
		}
		return
	}

	failedOrTimedOut := status != task.StatusSucceeded && status != task.StatusExitedAfterMarkedDone
	if !failedOrTimedOut || !s.apiClient.ShouldLateReport(timedOut) {
		return
	}

	uuid, _, err := s.apiClient.CreateExecution(finalizeCtx, s.identity, s.identity.InstanceMetadata, inputValue)
	if err != nil {
		logging.Warn().Err(err).Msg("supervisor: late registration failed")
		return
	}
	exec.SetUUID(uuid)
	if err := s.apiClient.Finalize(finalizeCtx, uuid, status, &exitCode, resultValue, tailLogs); err != nil {
		logging.Error().Err(err).Msg("supervisor: late finalize failed")
	}
}

// runtimeRefreshService periodically re-probes runtime metadata and
// folds the result back into exec.
func (s *Supervisor) runtimeRefreshService(exec *task.Execution) serviceFunc {
	return func(ctx context.Context) error {
		ticker := s.clk.NewTicker(s.opts.API.RuntimeMetadataRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				exec.SetRuntimeMetadata(descriptorToMap(s.probe.Refresh()))
			}
		}
	}
}

// resolveConfiguration runs the Config Resolver (when any locations are
// configured) and re-loads Options with its output layered on top.
func (s *Supervisor) resolveConfiguration(ctx context.Context) error {
	c := s.opts.Configuration
	if len(c.EnvLocations) == 0 && len(c.ConfigLocations) == 0 {
		return nil
	}

	result, err := s.resolver.Resolve(ctx, nil, configresolver.Options{
		EnvLocations:                  c.EnvLocations,
		ConfigLocations:               c.ConfigLocations,
		MergeStrategy:                 configresolver.Strategy(c.MergeStrategy),
		EnvMarker:                     configresolver.MarkerConfig{Prefix: c.ResolvedEnvVarNamePrefix, Suffix: c.ResolvedEnvVarNameSuffix},
		ConfigMarker:                  configresolver.MarkerConfig{Prefix: c.ResolvedConfigPropertyNamePrefix, Suffix: c.ResolvedConfigPropertyNameSuffix},
		MaxConfigResolutionDepth:      c.MaxConfigResolutionDepth,
		MaxConfigResolutionIterations: c.MaxConfigResolutionIterations,
		FailFastConfigResolution:      c.FailFastConfigResolution,
		EnvVarNameForConfig:           c.EnvVarNameForConfig,
		ConfigPropertyNameForEnv:      c.ConfigPropertyNameForEnv,
	})
	if err != nil {
		return config.NewResolutionError(err)
	}
	for _, w := range result.Warnings {
		logging.Ctx(ctx).Warn().Err(w).Msg("supervisor: configuration resolution warning")
	}
	for k, v := range result.Env {
		logging.Ctx(ctx).Debug().Str("name", k).Str("value", logging.SecretValue(v)).Msg("resolved env var")
	}

	currentMap, err := config.ToMap(s.opts)
	if err != nil {
		return config.NewConfigError("project current options: %v", err)
	}
	// The resolver's own settings are never re-read from resolved config.
	resolvedConfig := make(map[string]any, len(result.Config))
	for k, v := range result.Config {
		if k != "configuration" && !strings.HasPrefix(k, "configuration.") {
			resolvedConfig[k] = v
		}
	}
	reloaded, err := config.ReloadFromResolved(currentMap, resolvedConfig)
	if err != nil {
		return config.WrapConfigError(err)
	}
	if err := config.Validate(reloaded); err != nil {
		return err
	}
	s.opts = *reloaded
	s.resolvedEnv = result.Env
	logging.SetLevelString(s.opts.Log.Level)

	if c.OverwriteEnvDuringResolution {
		for k, v := range result.Env {
			os.Setenv(k, v)
		}
	}
	if c.EnvOutputFilename != "" {
		if werr := writeVariablesFile(c.EnvOutputFilename, c.EnvOutputFormat, result.Env); werr != nil {
			return config.NewConfigError("write env output file: %v", werr)
		}
	}
	if c.ConfigOutputFilename != "" {
		if werr := writeVariablesFile(c.ConfigOutputFilename, c.ConfigOutputFormat, result.Config); werr != nil {
			return config.NewConfigError("write config output file: %v", werr)
		}
	}
	return nil
}

// descriptorToMap projects a runtimeinfo.Descriptor to the map shape sent
// alongside create_execution/heartbeat payloads.
func descriptorToMap(d runtimeinfo.Descriptor) map[string]any {
	m := map[string]any{
		"container_platform":  d.ContainerPlatform,
		"orchestrator":        d.Orchestrator,
		"serverless_platform": d.ServerlessPlatform,
		"ci":                  d.CI,
		"hostname":            d.Hostname,
		"os_platform":         d.OSPlatform,
		"platform_version":    d.PlatformVersion,
		"kernel_version":      d.KernelVersion,
		"total_memory_bytes":  d.TotalMemoryBytes,
		"process_id":          d.ProcessID,
		"managed":             d.Managed(),
	}
	if !d.BootTime.IsZero() {
		m["boot_time"] = d.BootTime.Format(time.RFC3339)
	}
	for k, v := range d.Extra {
		m[k] = v
	}
	return m
}

// configLookup resolves a "CONFIG:" secret address to a value in the
// supervisor's own bootstrap options, applied as a dotted jsonpath
// against a projection of the current Options.
func (s *Supervisor) configLookup(path string) (any, bool) {
	m, err := config.ToMap(s.opts)
	if err != nil {
		return nil, false
	}
	v, err := jsonpath.Extract(m, path)
	if err != nil {
		return nil, false
	}
	return v, true
}
