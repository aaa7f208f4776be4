// Remedyd is an automated remediation and escalation daemon.
//
// It ingests failure signals over HTTP and NATS, deduplicates them, spawns
// bounded corrective jobs through a runner backend, evaluates outcomes, and
// escalates to humans when automated attempts are exhausted.
//
// Usage:
//
//	# Start the daemon with env configuration
//	remedyd serve
//
//	# Start with a config file
//	remedyd serve --config ~/.config/remedyd/config.yaml
//
//	# Run one reconcile cycle and exit
//	remedyd poll
//
//	# Show batch progress
//	remedyd status
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

// configPath is the optional config file location.
var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "remedyd",
	Short: "Automated remediation and escalation daemon",
	Long: `remedyd watches failure signals, spawns corrective jobs for them, and
escalates to humans when automated remediation is exhausted.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: environment only)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("remedyd by Fyrsmith Labs\n")
		fmt.Printf("Version:    %s\n", version)
		fmt.Printf("Commit:     %s\n", gitCommit)
		fmt.Printf("Build Date: %s\n", buildDate)
	},
}
