package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NoahCxrest/discord-watch-cron/pkg/config"
	"github.com/NoahCxrest/discord-watch-cron/pkg/logging"
	"github.com/NoahCxrest/discord-watch-cron/pkg/store"
)

// initCmd creates the database schema.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database schema",
	Long:  `Create the applications and guild_counts tables. Safe to re-run.`,
	RunE:  runInit,
}

// addCmd registers one application.
var addCmd = &cobra.Command{
	Use:   "add <app_id> <bot_id>",
	Short: "Register an application to watch",
	Long: `Register a Discord application for watching. app_id addresses the
directory entry; bot_id keys the recorded guild counts. Re-adding an existing
app_id updates its bot_id.`,
	Args: cobra.ExactArgs(2),
	RunE: runAdd,
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
}

// openAdminStore wires just enough for the administrative commands: init and
// add need the store but not the directory endpoint.
func openAdminStore(ctx context.Context) (*store.Store, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	if cfg.ConnString == "" {
		return nil, fmt.Errorf("CONNECTION_STRING is required")
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})

	return store.Open(ctx, store.Config{ConnString: cfg.ConnString, MaxConns: 2})
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openAdminStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.EnsureSchema(ctx)
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openAdminStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.AddApplication(ctx, args[0], args[1])
}
