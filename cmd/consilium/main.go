// Package main is the entry point for the consilium decision pipeline CLI.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/anthropics/consilium-engine/internal/config"
	"github.com/anthropics/consilium-engine/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	logLevel   string
	log        *slog.Logger
)

// gateError signals a policy-gate failure. It maps to exit code 2 so
// automation can distinguish a failed gate from an infrastructure
// error (exit 1).
type gateError struct{ reason string }

func (e *gateError) Error() string { return e.reason }

func main() {
	rootCmd := &cobra.Command{
		Use:   "consilium",
		Short: "Decision routing and governance pipeline",
		Long: `Consilium routes requests to specialist domains by trigger-phrase
confidence, keeps an append-only decision ledger, and runs the batch
analysis tools that gate promotion: temporal stability, drift
detection, and advisory remediation planning.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log = logger.New(os.Stderr, logLevel, "consilium")
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML (defaults to built-in catalog)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(routeCmd())
	rootCmd.AddCommand(backfillCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(trendCmd())
	rootCmd.AddCommand(snapshotCmd())
	rootCmd.AddCommand(driftCmd())
	rootCmd.AddCommand(temporalCmd())
	rootCmd.AddCommand(treatCmd())
	rootCmd.AddCommand(patchPlanCmd())
	rootCmd.AddCommand(promoteGateCmd())

	if err := rootCmd.Execute(); err != nil {
		var gate *gateError
		if errors.As(err, &gate) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("consilium %s (commit=%s, built=%s)\n", version, commit, date)
		},
	}
}

// loadConfig resolves --config; absent flag means built-in defaults.
func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}
