package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// onceCmd runs a single watch pass.
var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run one watch pass and exit",
	Long: `Run a single watch pass over every registered application and exit.

The exit code is 0 when the pass completes, even if some items failed. It is
non-zero when the pass itself could not complete: bad configuration, an
unreachable database, or cancellation.`,
	RunE: runOnce,
}

func init() {
	rootCmd.AddCommand(onceCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r, err := newRunner(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	_, err = r.runPass(ctx)
	return err
}
