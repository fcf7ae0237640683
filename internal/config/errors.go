package config

import "fmt"

// ConfigError marks a fatal bootstrap configuration problem: invalid or
// contradictory options, a failed struct validation, or a malformed CLI
// tail.
type ConfigError struct {
	cause error
}

func NewConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{cause: fmt.Errorf(format, args...)}
}

func WrapConfigError(err error) *ConfigError {
	return &ConfigError{cause: err}
}

func (e *ConfigError) Error() string { return "config: " + e.cause.Error() }
func (e *ConfigError) Unwrap() error { return e.cause }

// ResolutionError marks a secret fetch/parse/extract failure surfaced by
// the Config Resolver. It is fatal only when FailFastConfigResolution is
// set; otherwise the offending key is logged and left unresolved.
type ResolutionError struct {
	cause error
}

func NewResolutionError(err error) *ResolutionError {
	return &ResolutionError{cause: err}
}

func (e *ResolutionError) Error() string { return "config resolution: " + e.cause.Error() }
func (e *ResolutionError) Unwrap() error { return e.cause }

// InvariantError marks a violation of an internal invariant the
// Supervisor cannot recover from: it always aborts with a distinct exit
// code and is never retried.
type InvariantError struct {
	cause error
}

func NewInvariantError(format string, args ...any) *InvariantError {
	return &InvariantError{cause: fmt.Errorf(format, args...)}
}

func (e *InvariantError) Error() string { return "invariant violation: " + e.cause.Error() }
func (e *InvariantError) Unwrap() error { return e.cause }
