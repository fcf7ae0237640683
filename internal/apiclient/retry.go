package apiclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
)

// rawAttempt is one HTTP round trip's raw result, before classification.
type rawAttempt struct {
	status     int
	body       []byte
	retryAfter time.Duration
}

// attemptFn performs exactly one HTTP round trip for a phase.
type attemptFn func(ctx context.Context) (status int, body []byte, retryAfter time.Duration, err error)

// window bundles the error-timeout/retry-delay pair a phase retries
// under; create_execution has a second, conflict-specific pair.
type window struct {
	errorTimeout     time.Duration
	retryDelay       time.Duration
	conflictTimeout  time.Duration
	conflictDelay    time.Duration
}

// runWithRetry drives one logical API call through the retry policy:
// classify each attempt, back off per the matching window, and on window
// exhaustion either pause for resumeDelay and start a fresh window or
// surface the failure (resumeDelay < 0).
func (c *Client) runWithRetry(ctx context.Context, phase Phase, w window, isCreate bool, attempt attemptFn) ([]byte, error) {
	cb := c.breakerFor(phase)

outer:
	for {
		generalDeadline := c.clock.Now().Add(w.errorTimeout)
		conflictDeadline := c.clock.Now().Add(w.conflictTimeout)

		for {
			attemptCtx, cancel := context.WithTimeout(ctx, c.requestTimeout)
			result, cbErr := cb.Execute(func() (rawAttempt, error) {
				status, body, retryAfter, aerr := attempt(attemptCtx)
				if aerr != nil {
					return rawAttempt{}, aerr
				}
				ra := rawAttempt{status: status, body: body, retryAfter: retryAfter}
				if status == 429 || status >= 500 {
					return ra, fmt.Errorf("apiclient: status %d", status)
				}
				return ra, nil
			})
			cancel()

			var outcome Outcome
			switch {
			case cbErr != nil && errors.Is(cbErr, gobreaker.ErrOpenState):
				outcome = retryableOutcome(cbErr, 0, false)
			case cbErr != nil && result.status == 0:
				outcome = classifyNetworkError(cbErr)
			default:
				outcome = classifyStatus(result.status, result.retryAfter, isCreate)
			}

			switch outcome.Kind {
			case Ok:
				return result.body, nil
			case Terminal:
				return nil, fmt.Errorf("apiclient: %s: %w", phase, outcome.Cause)
			case Retryable:
				now := c.clock.Now()
				deadline, delay := generalDeadline, w.retryDelay
				if outcome.Conflict {
					deadline, delay = conflictDeadline, w.conflictDelay
				}
				if now.After(deadline) {
					break // window exhausted; fall to resume handling below
				}
				wait := delay
				if outcome.RetryAfter > 0 {
					wait = outcome.RetryAfter
				}
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(wait):
				}
				continue
			}
			break
		}

		if c.resumeDelay < 0 {
			return nil, fmt.Errorf("apiclient: %s: retry window exhausted", phase)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.resumeDelay):
		}
		continue outer
	}
}
