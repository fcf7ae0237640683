// Package main is the entry point for the process supervisor binary.
//
// The supervisor wraps a single child command and mediates its lifecycle
// with a remote Task Management service: it registers the invocation,
// spawns the child, retries on failure, heartbeats while it runs, and
// reports a terminal status exactly once.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - The "-- COMMAND ARGS..." CLI tail (process.command_line only)
//   - Environment variables (SUPERVISOR_*, see internal/config)
//   - Built-in defaults
//
// # Usage
//
//	procsupervisor -- COMMAND [ARGS...]
//
// Everything after "--" is the child command line. No supervisor flags
// are accepted: any argument before "--" is rejected as a configuration
// error, and every option is set through its SUPERVISOR_* environment
// variable instead.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the context driving Run, which carries the
// child through the STOPPING/STOPPED transition instead of leaving it
// orphaned.
//
// # Exit Codes
//
// On success or ordinary failure the child's own exit code is propagated
// unchanged. Supervisor-enforced timeout, configuration errors, and
// internal invariant violations each use a reserved nonzero code distinct
// from anything a child process could itself return.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/procsupervisor/internal/config"
	"github.com/tomtom215/procsupervisor/internal/logging"
	"github.com/tomtom215/procsupervisor/internal/supervisor"
)

// Reserved exit codes for invocation-level failures that precede or fall
// outside the child's own exit status, distinct from any code the child
// itself could return.
const (
	exitConfigError     = 64
	exitResolutionError = 65
	exitInvariantError  = 70
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flagArgs, commandTail := splitCommandTail(args)
	if len(flagArgs) > 0 {
		fmt.Fprintf(os.Stderr, "procsupervisor: unrecognized arguments before \"--\": %v\n", flagArgs)
		fmt.Fprintln(os.Stderr, "usage: procsupervisor -- COMMAND [ARGS...]")
		return exitConfigError
	}

	var overlay map[string]any
	if len(commandTail) > 0 {
		overlay = map[string]any{"process.command_line": commandTail}
	}

	// logging.Error rather than logging.Fatal here: zerolog's Fatal level
	// calls os.Exit(1) itself, which would collapse every bootstrap
	// failure onto the same exit code instead of a distinct reserved one.
	opts, err := config.Load(overlay)
	if err != nil {
		logging.Error().Err(err).Msg("failed to load configuration")
		return exitConfigError
	}
	if err := config.Validate(opts); err != nil {
		logging.Error().Err(err).Msg("invalid configuration")
		return exitConfigError
	}
	if len(opts.Process.CommandLine) == 0 && !opts.Configuration.ExitAfterWritingVariables {
		logging.Error().Msg("no command given: pass it after \"--\" (procsupervisor -- COMMAND ARGS...)")
		return exitConfigError
	}

	logging.Init(logging.Config{
		Level:      opts.Log.Level,
		Format:     "json",
		Timestamps: opts.Log.IncludeTimestamps,
		LogSecrets: opts.Log.LogSecrets,
	})

	logging.Info().Str("task_name", opts.Task.Name).Msg("starting process supervisor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	sup, err := supervisor.New(*opts, supervisor.Deps{})
	if err != nil {
		logging.Error().Err(err).Msg("failed to build supervisor")
		return exitCodeForError(err)
	}
	defer sup.Close()

	status, exitCode, _, runErr := sup.Run(ctx)
	if runErr != nil {
		if errors.Is(runErr, supervisor.ErrExitAfterWritingVariables) {
			logging.Info().Msg("exit_after_writing_variables set, exiting without running the child")
			return 0
		}
		logging.Error().Err(runErr).Msg("supervisor run failed")
		return exitCodeForError(runErr)
	}

	logging.Info().Str("status", string(status)).Int("exit_code", exitCode).Msg("invocation finished")
	return exitCode
}

// splitCommandTail separates the supervisor's own flags from the child
// command line, which starts after the first bare "--" argument.
func splitCommandTail(args []string) (flagArgs, commandTail []string) {
	for i, a := range args {
		if a == "--" {
			return args[:i], args[i+1:]
		}
	}
	return args, nil
}

// exitCodeForError maps the Supervisor's sentinel error types to their
// reserved exit codes. Anything else is treated as an internal invariant
// violation: it should never happen, and is never retried.
func exitCodeForError(err error) int {
	var configErr *config.ConfigError
	var resolutionErr *config.ResolutionError
	var invariantErr *config.InvariantError
	switch {
	case errors.As(err, &configErr):
		return exitConfigError
	case errors.As(err, &resolutionErr):
		return exitResolutionError
	case errors.As(err, &invariantErr):
		return exitInvariantError
	default:
		return exitInvariantError
	}
}
