package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "canvashub-server",
		Short: "Synchronization server for the canvashub shared whiteboard",
		Long: `canvashub-server is the authoritative process behind a shared canvas:
it accepts WebSocket connections from drawing clients, applies their edits
to the one in-memory canvas state, and rebroadcasts the result so every
participant converges on the same picture.

State lives in process memory only and is lost on restart.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("canvashub-server %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
