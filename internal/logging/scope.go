package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const scopeKey contextKey = iota

// Scope identifies the Task Execution an event belongs to. Attempt is
// 1-based and zero until the first spawn.
type Scope struct {
	TaskName      string
	ExecutionUUID string
	Attempt       int
}

// ContextWithScope attaches scope to ctx. The supervisor sets it once
// per invocation and again whenever the execution UUID or attempt
// number changes.
func ContextWithScope(ctx context.Context, scope Scope) context.Context {
	return context.WithValue(ctx, scopeKey, scope)
}

// ScopeFromContext returns the attached Scope, zero if none.
func ScopeFromContext(ctx context.Context) Scope {
	if s, ok := ctx.Value(scopeKey).(Scope); ok {
		return s
	}
	return Scope{}
}

// Ctx returns a logger that stamps every event with the execution scope
// carried by ctx. Empty fields are omitted, so pre-registration events
// carry only task_name.
func Ctx(ctx context.Context) *zerolog.Logger {
	lc := Logger().With()
	s := ScopeFromContext(ctx)
	if s.TaskName != "" {
		lc = lc.Str("task_name", s.TaskName)
	}
	if s.ExecutionUUID != "" {
		lc = lc.Str("execution_id", s.ExecutionUUID)
	}
	if s.Attempt > 0 {
		lc = lc.Int("attempt", s.Attempt)
	}
	l := lc.Logger()
	return &l
}

// WithComponent returns a child logger tagged with the emitting helper,
// e.g. "status_listener" or "heartbeat".
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
