package process

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPacer paces respawns after a failed attempt: process_retry_delay
// elapses between child-exit and the next spawn. A constant delay is
// exactly backoff.v4's ConstantBackOff, used here instead of a
// hand-rolled timer. The API Client does not use this package; it paces
// its own HTTP retries.
type RetryPacer struct {
	b backoff.BackOff
}

// NewRetryPacer builds a pacer that always waits delay between attempts.
func NewRetryPacer(delay time.Duration) *RetryPacer {
	return &RetryPacer{b: backoff.NewConstantBackOff(delay)}
}

// Wait blocks for the next backoff interval, or returns ctx.Err() if ctx is
// canceled first.
func (p *RetryPacer) Wait(ctx context.Context) error {
	d := p.b.NextBackOff()
	if d == backoff.Stop {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
