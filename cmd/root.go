// Package cmd wires the CLI surface. Configuration is resolved from the
// environment once per invocation and handed to the components as explicit
// values.
package cmd

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "adabot",
	Short: "Reports weekly library activity across a GitHub organization",
	Long: `adabot collects issue, pull-request, contributor and release activity
for a GitHub organization's library repositories, runs infrastructure
validation over each repository, and serializes the result as a
deterministic JSON document. In CI the document is published to the
website repository through a pull request.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

// newLogger builds the structured logger shared by every component.
func newLogger(verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           level,
	})
}
