// commands.go contains the cobra command definitions and their flag wiring.
// Each builder creates a command and routes it to its handler.
package main

import (
	"github.com/spf13/cobra"
)

func buildRunCmd() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the interactive sync client",
		Long: `Connect to the chat server and keep local state in sync.

The client will:
1. Load configuration from the specified file (or chatsync.yaml)
2. Establish the websocket push channel with heartbeat and reconnect
3. Resynchronize the full state snapshot on every connect
4. Read commands from stdin until EOF or SIGINT

Stdin protocol: a plain line is sent as a chat message. Lines starting
with / are commands:

  /messages                     print the timeline
  /users                        print the online counter
  /delete <message-id>          delete a message (confirmation asked)
  /mute <user-id> <username> <forever|10m|1h|minutes>
  /unmute <user-id> <username>  lift a mute (confirmation asked)
  /quit                         exit`,
		Example: `  # Run with default config
  chatsync run

  # Run with debug logging
  chatsync run --config prod.yaml --debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd.Context(), configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "chatsync.yaml",
		"Path to YAML configuration file")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging (verbose output)")

	return cmd
}

func buildAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "User management operations",
	}
	cmd.AddCommand(
		buildAdminCreateUserCmd(),
		buildAdminChangeRoleCmd(),
		buildAdminDeleteUserCmd(),
	)
	return cmd
}

func buildAdminCreateUserCmd() *cobra.Command {
	var (
		configPath string
		username   string
		password   string
		role       string
	)

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreateUser(cmd.Context(), configPath, username, password, role)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "chatsync.yaml", "Path to YAML configuration file")
	cmd.Flags().StringVar(&username, "username", "", "Username for the new account")
	cmd.Flags().StringVar(&password, "password", "", "Password for the new account")
	cmd.Flags().StringVar(&role, "role", "user", "Role: user or moderator")

	return cmd
}

func buildAdminChangeRoleCmd() *cobra.Command {
	var (
		configPath string
		userID     int64
		role       string
	)

	cmd := &cobra.Command{
		Use:   "change-role",
		Short: "Change an account's role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminChangeRole(cmd.Context(), configPath, userID, role)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "chatsync.yaml", "Path to YAML configuration file")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "Target user id")
	cmd.Flags().StringVar(&role, "role", "", "New role: user or moderator")

	return cmd
}

func buildAdminDeleteUserCmd() *cobra.Command {
	var (
		configPath string
		userID     int64
		username   string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "delete-user",
		Short: "Delete an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminDeleteUser(cmd.Context(), configPath, userID, username, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "chatsync.yaml", "Path to YAML configuration file")
	cmd.Flags().Int64Var(&userID, "user-id", 0, "Target user id")
	cmd.Flags().StringVar(&username, "username", "", "Target username, shown in the confirmation prompt")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
