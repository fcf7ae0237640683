// Package logging is the supervisor's zerolog-backed logging layer.
//
// One package-level logger serves the whole invocation. cmd/supervisor
// calls Init with the log option namespace once options are loaded;
// everything before that point falls back to JSON-on-stderr defaults so
// bootstrap failures are still visible. Stdout is never written to: it
// belongs to the child process.
//
//	logging.Init(logging.Config{Level: opts.Log.Level, Timestamps: opts.Log.IncludeTimestamps})
//	logging.Info().Str("task_name", name).Msg("starting process supervisor")
//
// # Execution scope
//
// Once an execution exists, its identity travels on the context and Ctx
// stamps every event with it:
//
//	ctx = logging.ContextWithScope(ctx, logging.Scope{TaskName: "nightly-etl", ExecutionUUID: uuid})
//	logging.Ctx(ctx).Warn().Int("exit_code", code).Msg("child exited non-zero, retrying")
//	// {"level":"warn","task_name":"nightly-etl","execution_id":"...","exit_code":7,...}
//
// # Secrets
//
// Resolved configuration may contain secret material. Fields that can
// carry it are wrapped in SecretValue, which honours the log_secrets
// option:
//
//	logging.Debug().Str("value", logging.SecretValue(v)).Msg("resolved env var")
//
// # slog bridge
//
// The helper tree's suture supervisor logs through sutureslog, which
// wants an *slog.Logger. NewSlogLogger bridges slog records onto the
// zerolog backend so helper restarts land in the same stream as
// everything else.
package logging
