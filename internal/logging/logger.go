package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config mirrors the supervisor's log option namespace. It is built from
// the loaded options in cmd/supervisor and passed to Init before the
// first child attempt.
type Config struct {
	// Level is the minimum level emitted: trace, debug, info, warn,
	// error, fatal. Default: info.
	Level string

	// Format selects json (machine-readable, the default) or console
	// (human-readable, for interactive runs).
	Format string

	// Timestamps attaches an RFC 3339 timestamp to every event. Bound to
	// the include-timestamps option.
	Timestamps bool

	// Caller attaches the emitting file:line. Off by default.
	Caller bool

	// LogSecrets permits resolved secret material in log output. When
	// false, SecretValue replaces values with a redaction marker.
	LogSecrets bool

	// Output defaults to os.Stderr, keeping stdout free for the child's
	// own streams.
	Output io.Writer
}

// DefaultConfig returns the configuration used before Init is called.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "json",
		Timestamps: true,
		Output:     os.Stderr,
	}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex

	logSecrets atomic.Bool
)

//nolint:gochecknoinits // bootstrap errors are logged before Init runs
func init() {
	configure(DefaultConfig())
}

// Init reconfigures the package-level logger. Called once from
// cmd/supervisor after options load; safe to call again (tests do).
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	configure(cfg)
}

func configure(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05", NoColor: true}
	}

	l := zerolog.New(out)
	if cfg.Timestamps {
		l = l.With().Timestamp().Logger()
	}
	if cfg.Caller {
		l = l.With().Caller().Logger()
	}
	log = l
	logSecrets.Store(cfg.LogSecrets)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the current package-level logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger swaps the package-level logger, mainly so tests can capture
// output.
//
//nolint:gocritic // zerolog.Logger is passed by value by design
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

// With starts a child-logger context for attaching default fields, e.g.
//
//	hb := logging.With().Str("component", "heartbeat").Logger()
func With() zerolog.Context {
	mu.RLock()
	defer mu.RUnlock()
	return log.With()
}

// Trace starts a trace-level event.
func Trace() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Trace()
}

// Debug starts a debug-level event.
func Debug() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Debug()
}

// Info starts an info-level event.
func Info() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Info()
}

// Warn starts a warn-level event.
func Warn() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Warn()
}

// Error starts an error-level event.
func Error() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Error()
}

// Fatal starts a fatal-level event. zerolog calls os.Exit(1) after the
// message is written, so cmd/supervisor avoids it for anything that must
// map to a reserved exit code.
func Fatal() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Fatal()
}

// Err starts an error-level event carrying err.
func Err(err error) *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()
	return log.Err(err)
}

// SetLevelString updates the global level from the log.level option
// value, for settings re-loaded after configuration resolution.
func SetLevelString(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

// GetLevel returns the current global level.
func GetLevel() zerolog.Level {
	return zerolog.GlobalLevel()
}

// SecretsLoggable reports whether resolved secret material may appear in
// log output.
func SecretsLoggable() bool {
	return logSecrets.Load()
}

// SecretValue returns v as-is when log_secrets is set and a redaction
// marker otherwise. Any field that can carry resolved secret material
// goes through here.
func SecretValue(v string) string {
	if logSecrets.Load() {
		return v
	}
	return "[redacted]"
}

// NewTestLogger returns a logger writing JSON to w, for tests that
// assert on emitted fields.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
