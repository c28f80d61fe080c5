package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "session-cli",
	Short: "Session API CLI - manage conversations and the session-api database",
	Long: `session-cli talks to a running session-api over HTTP and runs its database migrations.

Examples:
  # Database
  session-cli migrate up

  # Conversations (dev header auth)
  session-cli conversations create --user alice --title "Trip planning"
  session-cli conversations send conv_abc123 "What should I pack?" --user alice
  session-cli conversations list --user alice --archived

  # Conversations (bearer token)
  session-cli conversations get conv_abc123 --token $TOKEN`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(conversationsCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
}
