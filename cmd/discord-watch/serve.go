package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/NoahCxrest/discord-watch-cron/pkg/logging"
	"github.com/NoahCxrest/discord-watch-cron/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// serveCmd runs the watcher as a long-lived process.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the watcher on a schedule",
	Long: `Run one watch pass immediately, then repeat on the configured
schedule (SCHEDULE, default "@every 6h"). A pass still in flight when the
next trigger fires is never overlapped; that trigger is skipped.

When METRICS_ADDR is set, /metrics and /healthz are served on it.

The process runs until interrupted (Ctrl+C) or SIGTERM and finishes the
in-flight pass before exiting.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := newRunner(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	// First deploys come up without a manual init step.
	if err := r.store.EnsureSchema(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	if r.cfg.MetricsAddr != "" {
		addr := r.cfg.MetricsAddr
		g.Go(func() error {
			return serveMetrics(ctx, addr, r.logger)
		})
	}

	g.Go(func() error {
		return serveCron(ctx, r)
	})

	return g.Wait()
}

// serveCron runs one immediate pass and then triggers passes on the
// configured schedule until ctx is cancelled.
func serveCron(ctx context.Context, r *runner) error {
	pass := func() {
		if _, err := r.runPass(ctx); err != nil {
			r.logger.Error().Err(err).Msg("Run failed")
		}
	}

	cronLog := newCronLogger(logging.NewLogger("cron"))
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.SkipIfStillRunning(cronLog)),
	)
	id, err := c.AddFunc(r.cfg.Schedule, pass)
	if err != nil {
		return fmt.Errorf("schedule runs: %w", err)
	}

	r.logger.Info().
		Str("schedule", r.cfg.Schedule).
		Str("version", version).
		Msg("Watcher started")

	c.Start()

	// The immediate first pass goes through the same skip-if-running guard
	// as the scheduled ones, so a slow first pass is never overlapped.
	c.Entry(id).WrappedJob.Run()

	<-ctx.Done()

	r.logger.Info().Msg("Shutting down")
	select {
	case <-c.Stop().Done():
	case <-time.After(shutdownTimeout):
		r.logger.Warn().
			Dur("timeout", shutdownTimeout).
			Msg("Shutdown timed out, forcing exit")
	}
	return nil
}

// serveMetrics exposes /metrics and /healthz until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("Metrics listener started")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics listener: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// cronLogger adapts zerolog to the cron.Logger interface. Cron's own chatter
// logs at debug; scheduling errors log at error.
type cronLogger struct {
	logger zerolog.Logger
}

func newCronLogger(logger zerolog.Logger) cronLogger {
	return cronLogger{logger: logger}
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
