// Package config builds the supervisor's bootstrap Options:
// every CLI option and its environment-variable counterpart, grouped into
// task/api/process/io/log/updates/configuration namespaces.
//
// Options are assembled by layering three sources into one koanf
// instance, later layers overriding earlier ones at the leaf level:
//
//  1. DefaultOptions() via koanf's structs provider.
//  2. Every set SUPERVISOR_* environment variable, via koanf's env
//     provider (env.ProviderWithValue, so each variable is converted to
//     its typed Options value instead of staying a raw string).
//  3. Any overlay maps the caller passes to Load — normally the CLI's
//     own flag values, and later the Config Resolver's output (see
//     ReloadFromResolved), so a resolved config value can re-specify a
//     supervisor setting once resolution has completed.
//
// Parsing argv itself (flags, the "-- COMMAND ARGS..." tail) is outside
// this package's job: the argument parser is treated as an external
// collaborator, so cmd/supervisor owns that and hands this package the
// resulting overlay map plus the command tail.
//
// Validate runs go-playground/validator/v10 struct-tag validation over
// the assembled Options and wraps any failure as a *ConfigError.
package config
