package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Errors returned inside failed Results.
var (
	// ErrRetriesExhausted marks an item whose transient failures consumed
	// the whole attempt budget.
	ErrRetriesExhausted = errors.New("retry budget exhausted")

	// ErrRunCancelled marks an item abandoned because the run's context
	// was cancelled.
	ErrRunCancelled = errors.New("run cancelled")
)

// Fetcher performs a single fetch attempt for one item and classifies the
// response. Implementations must honor ctx and bound their own request
// timeout; they never retry.
type Fetcher interface {
	Fetch(ctx context.Context, item Item) Outcome
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, item Item) Outcome

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, item Item) Outcome {
	return f(ctx, item)
}

// RetryPolicy bounds the per-item retry loop. The zero value of any field
// selects its default; a negative MaxAttempts removes the attempt budget
// and a negative MaxDelay removes the delay cap.
type RetryPolicy struct {
	// MaxAttempts is the transient-error budget, counting the first attempt.
	// Rate-limited attempts never consume it.
	MaxAttempts int

	// InitialDelay seeds the backoff delay.
	InitialDelay time.Duration

	// MaxDelay caps the doubling delay.
	MaxDelay time.Duration

	// Multiplier grows the delay after every sleep.
	Multiplier float64
}

// DefaultRetryPolicy returns the production retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2.0,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts == 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialDelay == 0 {
		p.InitialDelay = def.InitialDelay
	}
	if p.MaxDelay == 0 {
		p.MaxDelay = def.MaxDelay
	}
	if p.Multiplier == 0 {
		p.Multiplier = def.Multiplier
	}
	return p
}

// exhausted reports whether attempt transient failures consumed the budget.
func (p RetryPolicy) exhausted(attempt int) bool {
	return p.MaxAttempts > 0 && attempt >= p.MaxAttempts
}

// next returns the grown backoff delay, capped at MaxDelay.
func (p RetryPolicy) next(delay time.Duration) time.Duration {
	grown := time.Duration(float64(delay) * p.Multiplier)
	if p.MaxDelay > 0 && grown > p.MaxDelay {
		grown = p.MaxDelay
	}
	return grown
}

// Resolver executes the bounded retry loop around a Fetcher, turning many
// fetch attempts into one Result per item. It keeps no state between calls:
// resolving the same item twice depends only on the outcomes the Fetcher
// returns during each call.
type Resolver struct {
	fetcher Fetcher
	policy  RetryPolicy
	clock   Clock
	logger  zerolog.Logger
}

// NewResolver creates a Resolver around fetcher. Zero policy fields are
// filled from DefaultRetryPolicy.
func NewResolver(fetcher Fetcher, policy RetryPolicy, logger zerolog.Logger) (*Resolver, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	return &Resolver{
		fetcher: fetcher,
		policy:  policy.withDefaults(),
		clock:   SystemClock{},
		logger:  logger,
	}, nil
}

// Resolve fetches item until it yields a value, turns out to have none,
// exhausts the transient-error budget, or ctx is cancelled. Rate-limit
// signals pause the loop (honoring the server hint when present) without
// consuming the budget. Elapsed covers the whole loop including sleeps.
func (r *Resolver) Resolve(ctx context.Context, item Item) Result {
	logger := r.logger.With().
		Str("app_id", item.AppID).
		Str("bot_id", item.BotID).
		Logger()

	start := r.clock.Now()
	delay := r.policy.InitialDelay
	attempt := 0
	calls := 0

	finish := func(res Result) Result {
		res.Item = item
		res.Attempts = calls
		res.Elapsed = r.clock.Now().Sub(start)
		return res
	}

	for {
		outcome := r.fetcher.Fetch(ctx, item)
		calls++
		watchFetchAttemptsTotal.WithLabelValues(string(outcome.Kind)).Inc()

		switch outcome.Kind {
		case OutcomeValue:
			logger.Debug().
				Int64("count", outcome.Count).
				Int("attempt", calls).
				Msg("Item resolved")
			return finish(Result{Success: true, Count: outcome.Count, HasCount: true})

		case OutcomeNoValue:
			logger.Debug().
				Int("attempt", calls).
				Msg("Item resolved without a count")
			return finish(Result{Success: true})

		case OutcomeRateLimited:
			wait := delay
			if outcome.HasRetryAfter {
				wait = outcome.RetryAfter
			}
			watchRetrySleepSeconds.WithLabelValues(sleepReasonRateLimit).Observe(wait.Seconds())
			logger.Warn().
				Bool("server_hint", outcome.HasRetryAfter).
				Dur("wait", wait).
				Msg("Rate limited, pausing")
			if err := r.clock.Sleep(ctx, wait); err != nil {
				return finish(Result{Err: fmt.Errorf("%w: %v", ErrRunCancelled, err)})
			}
			delay = r.policy.next(delay)

		case OutcomeTransient:
			attempt++
			if r.policy.exhausted(attempt) {
				watchRetriesExhaustedTotal.Inc()
				logger.Error().
					Err(outcome.Err).
					Int("attempts", calls).
					Msg("Retry budget exhausted")
				return finish(Result{
					Err: fmt.Errorf("%w after %d attempts: %v", ErrRetriesExhausted, attempt, outcome.Err),
				})
			}
			watchRetrySleepSeconds.WithLabelValues(sleepReasonBackoff).Observe(delay.Seconds())
			logger.Warn().
				Err(outcome.Err).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Transient fetch error, retrying after backoff")
			if err := r.clock.Sleep(ctx, delay); err != nil {
				return finish(Result{Err: fmt.Errorf("%w: %v", ErrRunCancelled, err)})
			}
			delay = r.policy.next(delay)

		default:
			// Unreachable for outcomes built through the constructors.
			return finish(Result{Err: fmt.Errorf("unknown fetch outcome %q", outcome.Kind)})
		}
	}
}
