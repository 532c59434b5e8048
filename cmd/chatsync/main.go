// Package main provides the CLI entry point for the chatsync client.
//
// chatsync keeps a local mirror of a moderated group chat in sync with the
// server: the message timeline, who is online, and who is muted. It talks to
// the server over a websocket push channel plus a small REST surface for
// moderation and admin actions.
//
// # Basic Usage
//
// Run the interactive client:
//
//	chatsync run --config chatsync.yaml
//
// Admin operations without a running session:
//
//	chatsync admin create-user --username dave --password s3cret --role user
//	chatsync admin change-role --user-id 3 --role moderator
//	chatsync admin delete-user --user-id 3 --username dave
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "chatsync",
		Short:        "chatsync - real-time sync client for a moderated group chat",
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildRunCmd(),
		buildAdminCmd(),
	)

	return rootCmd
}
