// Package store persists the watched application list and the observed guild
// counts in PostgreSQL. It is both the work source (ListApplications) and the
// result sink (Record) for a watch run.
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/NoahCxrest/discord-watch-cron/pkg/watch"
)

// Prometheus metrics for store queries.
var storeQueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "store_queries_total",
	Help: "Total store queries by name and status",
}, []string{"query", "status"})

const (
	queryStatusOK    = "ok"
	queryStatusError = "error"
)

// Config holds the store configuration.
type Config struct {
	// ConnString is a PostgreSQL DSN or URL.
	ConnString string

	// MaxConns bounds the pool size. It should be at least the batch size
	// so sink inserts never queue behind each other during batch fan-out.
	MaxConns int32
}

// DefaultConfig returns a store configuration sized for the default batch
// fan-out of ten concurrent items.
func DefaultConfig(connString string) Config {
	return Config{
		ConnString: connString,
		MaxConns:   10,
	}
}

// Store provides access to the applications and guild_counts tables. It is
// safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// Sink contract check: a Store can be handed to the scheduler directly.
var _ watch.Sink = (*Store)(nil)

// Open validates the configuration and creates the connection pool. The pool
// connects lazily; call Ping to verify reachability.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.ConnString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	return &Store{
		pool:   pool,
		logger: log.With().Str("component", "store").Logger(),
	}, nil
}

// Ping verifies database reachability.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema applies the idempotent schema statements.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			storeQueriesTotal.WithLabelValues("ensure_schema", queryStatusError).Inc()
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	storeQueriesTotal.WithLabelValues("ensure_schema", queryStatusOK).Inc()
	s.logger.Info().Msg("Schema ensured")
	return nil
}

// ListApplications returns every watched application ordered by app_id. The
// ordering fixes the batch composition for a run.
func (s *Store) ListApplications(ctx context.Context) ([]watch.Item, error) {
	rows, err := s.pool.Query(ctx, `SELECT app_id, bot_id FROM applications ORDER BY app_id`)
	if err != nil {
		storeQueriesTotal.WithLabelValues("list_applications", queryStatusError).Inc()
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var items []watch.Item
	for rows.Next() {
		var item watch.Item
		if err := rows.Scan(&item.AppID, &item.BotID); err != nil {
			storeQueriesTotal.WithLabelValues("list_applications", queryStatusError).Inc()
			return nil, fmt.Errorf("scan application: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		storeQueriesTotal.WithLabelValues("list_applications", queryStatusError).Inc()
		return nil, fmt.Errorf("list applications: %w", err)
	}

	storeQueriesTotal.WithLabelValues("list_applications", queryStatusOK).Inc()
	return items, nil
}

// AddApplication registers an application to watch. Re-adding an existing
// app_id updates its bot_id.
func (s *Store) AddApplication(ctx context.Context, appID, botID string) error {
	if appID == "" {
		return fmt.Errorf("app id is required")
	}
	if botID == "" {
		return fmt.Errorf("bot id is required")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO applications (app_id, bot_id) VALUES ($1, $2)
		 ON CONFLICT (app_id) DO UPDATE SET bot_id = EXCLUDED.bot_id`,
		appID, botID)
	if err != nil {
		storeQueriesTotal.WithLabelValues("add_application", queryStatusError).Inc()
		return fmt.Errorf("add application: %w", err)
	}

	storeQueriesTotal.WithLabelValues("add_application", queryStatusOK).Inc()
	s.logger.Info().Str("app_id", appID).Str("bot_id", botID).Msg("Application registered")
	return nil
}

// Record appends one guild count observation. Observations are append-only;
// duplicates from overlapping runs are acceptable.
func (s *Store) Record(ctx context.Context, botID string, count int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO guild_counts (bot_id, guild_count) VALUES ($1, $2)`,
		botID, count)
	if err != nil {
		storeQueriesTotal.WithLabelValues("record", queryStatusError).Inc()
		return fmt.Errorf("record guild count: %w", err)
	}

	storeQueriesTotal.WithLabelValues("record", queryStatusOK).Inc()
	return nil
}
