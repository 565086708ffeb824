package watch

import (
	"fmt"
	"time"
)

// OutcomeKind classifies a single fetch attempt.
type OutcomeKind string

const (
	// OutcomeValue is a 2xx response carrying a usable count.
	OutcomeValue OutcomeKind = "value"

	// OutcomeNoValue is a 2xx response with no usable count. Terminal and
	// non-retryable: the entry exists but exposes no statistic.
	OutcomeNoValue OutcomeKind = "no_value"

	// OutcomeRateLimited is a 429 response, optionally carrying a server
	// wait hint. A pace signal, not a fault.
	OutcomeRateLimited OutcomeKind = "rate_limited"

	// OutcomeTransient is a retryable failure: non-429 non-2xx status,
	// network error, timeout, or a malformed body.
	OutcomeTransient OutcomeKind = "transient_error"
)

// Outcome is the classified result of one fetch attempt. Construct it with
// Value, NoValue, RateLimited, RateLimitedFor, or Transient.
type Outcome struct {
	Kind OutcomeKind

	// Count is valid only for OutcomeValue.
	Count int64

	// RetryAfter is the server wait hint for OutcomeRateLimited, valid only
	// when HasRetryAfter is set.
	RetryAfter    time.Duration
	HasRetryAfter bool

	// Err is the cause for OutcomeTransient.
	Err error
}

// Value returns an Outcome for a successfully observed count.
func Value(count int64) Outcome {
	return Outcome{Kind: OutcomeValue, Count: count}
}

// NoValue returns an Outcome for a well-formed response without a count.
func NoValue() Outcome {
	return Outcome{Kind: OutcomeNoValue}
}

// RateLimited returns an Outcome for a rate-limit response without a hint.
func RateLimited() Outcome {
	return Outcome{Kind: OutcomeRateLimited}
}

// RateLimitedFor returns an Outcome for a rate-limit response carrying a
// server wait hint.
func RateLimitedFor(wait time.Duration) Outcome {
	return Outcome{Kind: OutcomeRateLimited, RetryAfter: wait, HasRetryAfter: true}
}

// Transient returns an Outcome for a retryable fetch failure.
func Transient(cause error) Outcome {
	return Outcome{Kind: OutcomeTransient, Err: cause}
}

// String renders the outcome for logs and error messages.
func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeValue:
		return fmt.Sprintf("value(%d)", o.Count)
	case OutcomeRateLimited:
		if o.HasRetryAfter {
			return fmt.Sprintf("rate_limited(retry_after=%s)", o.RetryAfter)
		}
		return "rate_limited"
	case OutcomeTransient:
		return fmt.Sprintf("transient_error(%v)", o.Err)
	default:
		return string(o.Kind)
	}
}
