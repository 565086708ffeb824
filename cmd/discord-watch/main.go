// Package main is the entry point for the discord-watch CLI.
//
// discord-watch keeps a PostgreSQL record of how many guilds each watched
// Discord application is installed in. The serve command polls the
// application directory on a schedule; once, init and add cover single runs
// and administration.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is the base command; it only displays help. Functionality lives in
// the subcommands.
var rootCmd = &cobra.Command{
	Use:   "discord-watch",
	Short: "Track guild counts for Discord applications",
	Long: `discord-watch polls the Discord application directory for every
registered application and records each observed guild count in PostgreSQL.

Configuration comes from the environment. Required:
  BASE_URL           application directory endpoint root
  CONNECTION_STRING  PostgreSQL DSN

Quick start:
  1. discord-watch init                   # create the tables
  2. discord-watch add <app_id> <bot_id>  # register an application
  3. discord-watch serve                  # poll on a schedule`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this discord-watch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("discord-watch %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
