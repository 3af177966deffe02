// Package main implements the repoindexer CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath overrides ~/.config/repoindexer/config.yaml
	configPath string
	// metricsAddr serves /metrics while a run is active when set
	metricsAddr string
	workers     int
	logLevel    string
	logFormat   string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "repoindexer",
	Short: "Crawl a hosting account and index its source files as embeddings",
	Long: `repoindexer enumerates the public repositories of a user or organization,
selects source files by extension and size, and writes one embedding per file
to a vector store. A plain-text report is printed to stdout; logs go to stderr.

Configuration is read from ~/.config/repoindexer/config.yaml and
REPOINDEXER_* environment variables. GITHUB_TOKEN is used when no token
is configured.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics, /health and /api/v1/status on this address during the run (e.g. :9464)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "repositories processed concurrently (overrides pipeline.workers)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or console")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(setupONNXCmd)
}
