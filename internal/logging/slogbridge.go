package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// slogBridge forwards slog records to zerolog. It exists for one
// consumer: sutureslog, which reports helper-tree lifecycle events
// through an *slog.Logger. Bridging keeps those events in the same
// stream and format as the supervisor's own logging.
type slogBridge struct {
	logger zerolog.Logger
	attrs  []slog.Attr
	groups []string
}

// NewSlogLogger returns an *slog.Logger whose records are written by the
// package-level zerolog logger.
//
//	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
func NewSlogLogger() *slog.Logger {
	return slog.New(&slogBridge{logger: Logger()})
}

// NewSlogLoggerWith returns an *slog.Logger backed by a specific zerolog
// logger, for tests that capture output.
//
//nolint:gocritic // zerolog.Logger is passed by value by design
func NewSlogLoggerWith(logger zerolog.Logger) *slog.Logger {
	return slog.New(&slogBridge{logger: logger})
}

func (b *slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return b.logger.GetLevel() <= bridgeLevel(level)
}

//nolint:gocritic // slog.Record is passed by value per the Handler interface
func (b *slogBridge) Handle(_ context.Context, record slog.Record) error {
	event := b.logger.WithLevel(bridgeLevel(record.Level))
	for _, attr := range b.attrs {
		event = b.appendAttr(event, attr, nil)
	}
	record.Attrs(func(attr slog.Attr) bool {
		event = b.appendAttr(event, attr, b.groups)
		return true
	})
	event.Msg(record.Message)
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	merged = append(merged, b.attrs...)
	// Qualify the new attrs with the groups open now, so a later
	// WithGroup does not re-prefix them.
	for _, attr := range attrs {
		for i := len(b.groups) - 1; i >= 0; i-- {
			attr = slog.Attr{Key: b.groups[i], Value: slog.GroupValue(attr)}
		}
		merged = append(merged, attr)
	}
	return &slogBridge{logger: b.logger, attrs: merged, groups: b.groups}
}

func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	groups := make([]string, 0, len(b.groups)+1)
	groups = append(groups, b.groups...)
	groups = append(groups, name)
	return &slogBridge{logger: b.logger, attrs: b.attrs, groups: groups}
}

// appendAttr flattens an slog attribute onto a zerolog event. Group
// membership becomes a dotted key prefix, matching how the rest of the
// supervisor names nested fields.
func (b *slogBridge) appendAttr(event *zerolog.Event, attr slog.Attr, groups []string) *zerolog.Event {
	if attr.Value.Kind() == slog.KindGroup {
		for _, member := range attr.Value.Group() {
			event = b.appendAttr(event, member, append(groups, attr.Key))
		}
		return event
	}

	key := attr.Key
	for i := len(groups) - 1; i >= 0; i-- {
		key = groups[i] + "." + key
	}

	switch attr.Value.Kind() {
	case slog.KindString:
		return event.Str(key, attr.Value.String())
	case slog.KindInt64:
		return event.Int64(key, attr.Value.Int64())
	case slog.KindUint64:
		return event.Uint64(key, attr.Value.Uint64())
	case slog.KindFloat64:
		return event.Float64(key, attr.Value.Float64())
	case slog.KindBool:
		return event.Bool(key, attr.Value.Bool())
	case slog.KindDuration:
		return event.Dur(key, attr.Value.Duration())
	case slog.KindTime:
		return event.Time(key, attr.Value.Time())
	default:
		return event.Interface(key, attr.Value.Any())
	}
}

// bridgeLevel maps slog levels onto zerolog's. Levels below debug become
// trace; everything at or above error stays error, since the bridge's
// only client never emits fatal.
func bridgeLevel(level slog.Level) zerolog.Level {
	switch {
	case level < slog.LevelDebug:
		return zerolog.TraceLevel
	case level < slog.LevelInfo:
		return zerolog.DebugLevel
	case level < slog.LevelWarn:
		return zerolog.InfoLevel
	case level < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
