package apiclient

import "time"

// Kind tags the three-way result of one API call attempt: a
// tagged-variant result, Ok | Retryable(cause, after?) | Terminal(cause),
// rather than using exceptions for control flow in the retry engine.
type Kind int

const (
	Ok Kind = iota
	Retryable
	Terminal
)

func (k Kind) String() string {
	switch k {
	case Ok:
		return "ok"
	case Retryable:
		return "retryable"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Outcome is the result of dispatching one HTTP attempt through
// classifyStatus. RetryAfter is set when the server sent a Retry-After
// header on a retryable response.
type Outcome struct {
	Kind       Kind
	Cause      error
	RetryAfter time.Duration
	// Conflict marks the 409 case, which is retryable only for
	// create_execution and uses the conflict-specific timeout/delay
	// instead of the general error-timeout/retry-delay.
	Conflict bool
}

func okOutcome() Outcome { return Outcome{Kind: Ok} }

func retryableOutcome(cause error, after time.Duration, conflict bool) Outcome {
	return Outcome{Kind: Retryable, Cause: cause, RetryAfter: after, Conflict: conflict}
}

func terminalOutcome(cause error) Outcome {
	return Outcome{Kind: Terminal, Cause: cause}
}
