package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ganymede",
	Short: "Ganymede - JSON-RPC gateway for LLM completions",
	Long: `Ganymede is a connection-oriented JSON-RPC 2.0 gateway for LLM
completion backends.

It accepts WebSocket connections and provides:
  - A strict initialize handshake with capability negotiation
  - Single-shot and streaming completions with per-request cancellation
  - Idle connection reaping and liveness probing
  - Graceful shutdown with a bounded drain window
  - An asynchronous audit trail of resolved requests`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
