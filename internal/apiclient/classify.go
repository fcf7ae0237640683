package apiclient

import (
	"fmt"
	"time"
)

// classifyStatus applies the response classification:
// 2xx success; 409 conflict (retryable, but only meaningful for
// create_execution); 4xx terminal except 429; 5xx retryable except 500
// (a deliberate policy decision: 500 is not retried, 502/503/504 are).
func classifyStatus(statusCode int, retryAfter time.Duration, isCreate bool) Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return okOutcome()

	case statusCode == 409:
		if isCreate {
			return retryableOutcome(fmt.Errorf("apiclient: conflict (409)"), retryAfter, true)
		}
		return terminalOutcome(fmt.Errorf("apiclient: unexpected conflict (409)"))

	case statusCode == 429:
		return retryableOutcome(fmt.Errorf("apiclient: rate limited (429)"), retryAfter, false)

	case statusCode == 500:
		return terminalOutcome(fmt.Errorf("apiclient: internal server error (500)"))

	case statusCode >= 500:
		return retryableOutcome(fmt.Errorf("apiclient: server error (%d)", statusCode), retryAfter, false)

	case statusCode >= 400:
		return terminalOutcome(fmt.Errorf("apiclient: client error (%d)", statusCode))

	default:
		return terminalOutcome(fmt.Errorf("apiclient: unexpected status %d", statusCode))
	}
}

// classifyNetworkError handles a transport-level failure (connection
// refused, timeout, DNS failure, ...), which is always retryable.
func classifyNetworkError(err error) Outcome {
	return retryableOutcome(err, 0, false)
}
