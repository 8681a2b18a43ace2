// Husky is a terminal chat client.
//
// It logs in to a Husky relay, ties with another user and exchanges
// messages, all from a full-screen terminal UI.
//
// Usage:
//
//	husky [command] [flags]
//
// Running without arguments opens the chat UI using the saved relay profile.
// See 'husky --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/husky/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "husky",
	Short: "Husky terminal chat",
	Long: `A terminal chat client for Husky relays.

Log in with your username:password, tie with another user by name and chat.
The relay profile is read from the config file and can be overridden with
flags for a single run.

If no command is specified, the chat UI launches.`,
	Version: version.Version,
	RunE:    runChat,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("husky %s\n", version.Full())
	},
}
