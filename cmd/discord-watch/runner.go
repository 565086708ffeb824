package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/NoahCxrest/discord-watch-cron/pkg/config"
	"github.com/NoahCxrest/discord-watch-cron/pkg/directory"
	"github.com/NoahCxrest/discord-watch-cron/pkg/logging"
	"github.com/NoahCxrest/discord-watch-cron/pkg/store"
	"github.com/NoahCxrest/discord-watch-cron/pkg/watch"
)

// runner holds the wired collaborators shared by serve and once.
type runner struct {
	cfg    config.Config
	logger zerolog.Logger
	store  *store.Store
	sched  *watch.Scheduler
}

// newRunner loads the environment configuration and wires the store, the
// directory client, the resolver and the scheduler. The caller owns Close.
func newRunner(ctx context.Context) (*runner, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})
	logger := logging.NewLogger("discord-watch")

	st, err := store.Open(ctx, store.Config{
		ConnString: cfg.ConnString,
		MaxConns:   int32(cfg.BatchSize),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	fetcher, err := directory.New(directory.Config{
		BaseURL:   cfg.BaseURL,
		UserAgent: userAgent(cfg.UserAgent),
		Timeout:   cfg.RequestTimeout,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create directory client: %w", err)
	}

	resolver, err := watch.NewResolver(fetcher, watch.RetryPolicy{
		MaxAttempts:  cfg.MaxAttempts,
		InitialDelay: cfg.InitialRetryDelay,
		MaxDelay:     cfg.MaxRetryDelay,
	}, logging.NewLogger("resolver"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create resolver: %w", err)
	}

	sched, err := watch.NewScheduler(resolver, st, watch.SchedulerConfig{
		BatchSize:     cfg.BatchSize,
		MaxSubRounds:  cfg.MaxSubRounds,
		SubRoundDelay: cfg.SubRoundDelay,
		BatchDelay:    cfg.BatchDelay,
	}, logging.NewLogger("scheduler"))
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	return &runner{
		cfg:    cfg,
		logger: logger,
		store:  st,
		sched:  sched,
	}, nil
}

// runPass performs one full watch pass over the registered applications.
func (r *runner) runPass(ctx context.Context) (*watch.Report, error) {
	items, err := r.store.ListApplications(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("Listing applications failed")
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return r.sched.Run(ctx, items)
}

// Close releases the store pool.
func (r *runner) Close() {
	r.store.Close()
}

// userAgent falls back to the binary's build identity when no override is
// configured.
func userAgent(configured string) string {
	if configured != "" {
		return configured
	}
	return fmt.Sprintf("discord-watch-cron/%s", version)
}
