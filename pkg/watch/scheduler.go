package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sink records one observation per item that resolved with a count. The
// scheduler invokes it from up to BatchSize goroutines at once, so
// implementations must be safe for concurrent use.
type Sink interface {
	Record(ctx context.Context, botID string, count int64) error
}

// SinkFunc adapts a plain function to the Sink interface.
type SinkFunc func(ctx context.Context, botID string, count int64) error

// Record calls f.
func (f SinkFunc) Record(ctx context.Context, botID string, count int64) error {
	return f(ctx, botID, count)
}

// ItemResolver turns one work item into its terminal Result. *Resolver is
// the production implementation.
type ItemResolver interface {
	Resolve(ctx context.Context, item Item) Result
}

// SchedulerConfig shapes a run. Unlike RetryPolicy, most zero values are
// meaningful here (zero delays pause nothing, zero MaxSubRounds disables
// retry passes); start from DefaultSchedulerConfig for production settings.
type SchedulerConfig struct {
	// BatchSize is the number of items per batch and the concurrency bound
	// within it. Zero selects the default.
	BatchSize int

	// MaxSubRounds caps the retry passes appended to a batch's initial
	// pass. Negative removes the cap, restoring never-give-up behavior.
	MaxSubRounds int

	// SubRoundDelay is the pause before each retry pass.
	SubRoundDelay time.Duration

	// BatchDelay is the pause between consecutive batches.
	BatchDelay time.Duration

	// CountNoValueAsSuccess moves items without a count from the failed to
	// the successful tally.
	CountNoValueAsSuccess bool
}

// DefaultSchedulerConfig returns the production scheduler settings.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BatchSize:     10,
		MaxSubRounds:  3,
		SubRoundDelay: 2 * time.Second,
		BatchDelay:    2 * time.Second,
	}
}

func (c SchedulerConfig) withDefaults() SchedulerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultSchedulerConfig().BatchSize
	}
	return c
}

// Scheduler drives one full run: order-preserving batches, concurrent
// resolution inside each batch, selective sub-round retries of the failed
// subset, and exactly one Result per input item in the final Report.
type Scheduler struct {
	resolver ItemResolver
	sink     Sink
	cfg      SchedulerConfig
	clock    Clock
	logger   zerolog.Logger
}

// NewScheduler wires a Scheduler. resolver and sink are required.
func NewScheduler(resolver ItemResolver, sink Sink, cfg SchedulerConfig, logger zerolog.Logger) (*Scheduler, error) {
	if resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	return &Scheduler{
		resolver: resolver,
		sink:     sink,
		cfg:      cfg.withDefaults(),
		clock:    SystemClock{},
		logger:   logger,
	}, nil
}

// Run resolves every item and returns the finalized Report. Per-item
// failures never fail the run; the returned error is non-nil only when ctx
// was cancelled, and the Report still accounts for every input item in
// that case (unresolved items count as failed).
func (s *Scheduler) Run(ctx context.Context, items []Item) (*Report, error) {
	report := NewReport(s.clock.Now())
	logger := s.logger.With().Str("run_id", report.RunID).Logger()

	batches := partition(items, s.cfg.BatchSize)
	logger.Info().
		Int("items", len(items)).
		Int("batches", len(batches)).
		Int("batch_size", s.cfg.BatchSize).
		Msg("Run started")

	cancelled := false
	for i, batch := range batches {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			for _, item := range batch {
				s.append(report, Result{
					Item: item,
					Err:  fmt.Errorf("%w: %v", ErrRunCancelled, ctx.Err()),
				})
			}
			continue
		}

		batchLogger := logger.With().Int("batch", i+1).Logger()
		for _, res := range s.runBatch(ctx, batch, batchLogger) {
			s.append(report, res)
		}

		if i < len(batches)-1 {
			if err := s.clock.Sleep(ctx, s.cfg.BatchDelay); err != nil {
				cancelled = true
			}
		}
	}

	report.Finish(s.clock.Now())
	watchRunDurationSeconds.Observe(report.Duration().Seconds())

	status := runStatusCompleted
	var runErr error
	if cancelled || ctx.Err() != nil {
		status = runStatusCancelled
		runErr = fmt.Errorf("%w: %v", ErrRunCancelled, ctx.Err())
	}
	watchRunsTotal.WithLabelValues(status).Inc()

	logger.Info().
		Int("total", report.Total).
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Int("no_value", report.NoValue).
		Dur("duration", report.Duration()).
		Str("status", status).
		Msg("Run complete")

	return report, runErr
}

// runBatch resolves one batch to its final per-item Results. The initial
// pass covers the whole batch; every subsequent sub-round re-issues only
// the items that failed the pass before, after a fixed pause.
func (s *Scheduler) runBatch(ctx context.Context, batch []Item, logger zerolog.Logger) []Result {
	logger.Info().Int("size", len(batch)).Msg("Batch started")

	final := make([]Result, len(batch))
	pending := make([]int, len(batch))
	for i := range batch {
		pending[i] = i
	}

	subRound := 0
	for {
		results := make([]Result, len(pending))
		var wg sync.WaitGroup
		for j, idx := range pending {
			wg.Add(1)
			go func(j, idx int) {
				defer wg.Done()
				results[j] = s.resolveAndRecord(ctx, batch[idx], logger)
			}(j, idx)
		}
		wg.Wait()

		var failed []int
		for j, idx := range pending {
			final[idx] = results[j]
			if !results[j].Success {
				failed = append(failed, idx)
			}
		}
		pending = failed

		if len(pending) == 0 || ctx.Err() != nil {
			break
		}
		if s.cfg.MaxSubRounds >= 0 && subRound >= s.cfg.MaxSubRounds {
			logger.Warn().
				Int("failed", len(pending)).
				Int("sub_rounds", subRound).
				Msg("Sub-round budget exhausted, recording remaining items as failed")
			break
		}

		subRound++
		watchSubRoundsTotal.Inc()
		logger.Info().
			Int("failed", len(pending)).
			Int("sub_round", subRound).
			Dur("delay", s.cfg.SubRoundDelay).
			Msg("Resubmitting failed items")
		if err := s.clock.Sleep(ctx, s.cfg.SubRoundDelay); err != nil {
			break
		}
	}

	succeeded := 0
	for _, res := range final {
		if res.Success {
			succeeded++
		}
	}
	logger.Info().
		Int("size", len(batch)).
		Int("succeeded", succeeded).
		Int("failed", len(batch)-succeeded).
		Int("sub_rounds", subRound).
		Msg("Batch complete")

	return final
}

// resolveAndRecord resolves one item and pushes its count to the sink. A
// sink failure marks the result but never re-fetches the item.
func (s *Scheduler) resolveAndRecord(ctx context.Context, item Item, logger zerolog.Logger) Result {
	res := s.resolver.Resolve(ctx, item)
	if res.Success && res.HasCount {
		if err := s.sink.Record(ctx, item.BotID, res.Count); err != nil {
			watchSinkErrorsTotal.Inc()
			logger.Error().
				Err(err).
				Str("app_id", item.AppID).
				Str("bot_id", item.BotID).
				Int64("count", res.Count).
				Msg("Sink insert failed")
			res.SinkErr = err
		}
	}
	return res
}

// append folds one terminal Result into the report and the item metrics.
func (s *Scheduler) append(report *Report, res Result) {
	successful := res.Recorded() ||
		(res.Success && !res.HasCount && s.cfg.CountNoValueAsSuccess)
	report.Append(res, successful)

	if successful {
		watchItemsTotal.WithLabelValues(itemResultSuccess).Inc()
	} else {
		watchItemsTotal.WithLabelValues(itemResultFailed).Inc()
	}
	if res.Success && !res.HasCount {
		watchNoValueTotal.Inc()
	}
}

// partition splits items into consecutive batches of size, preserving the
// input order.
func partition(items []Item, size int) [][]Item {
	var batches [][]Item
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
