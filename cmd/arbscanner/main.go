package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"arbscanner/internal/config"
)

var (
	// Global flags
	configPath string

	version = "dev"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCommand creates the root command for the CLI
func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "arbscanner",
		Short: "Cross-exchange spot arbitrage scanner",
		Long: `arbscanner polls bid/ask quotes from several exchanges, finds spreads that
survive fees and liquidity checks, and records simulated trades.

Examples:
  arbscanner run --config ./configs
  arbscanner stats --limit 50
  arbscanner stats --db`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".",
		"Directory containing config.yaml")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "arbscanner", version)
		},
	}
}

// loadConfig reads and validates the configuration and builds the logger.
func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("cannot load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	return cfg, logger, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
