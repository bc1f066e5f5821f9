// Package cmd implements the planmerge CLI.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/planmerge/internal/config"
	"github.com/felixgeelhaar/planmerge/internal/log"
	"github.com/felixgeelhaar/planmerge/internal/report"
)

var rootCmd = &cobra.Command{
	Use:   "planmerge",
	Short: "Recommendation consolidation engine",
	Long: `planmerge consolidates recommendation batches from independent analysis
passes into a single non-redundant, phase-organized action plan. It
deduplicates across batches, reconciles recommendations against the
existing plan, tracks phase lifecycle state, and guards every mutation
with budgets and backups.`,
	SilenceUsage: true,
}

var (
	configPath   string
	outputFormat string
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a cancellable context
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(),
		"config file path")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text",
		"output format (text or json)")
}

// loadConfig reads the configuration and initializes the default logger from
// it. Every command goes through here before touching state.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(cfg.Log.Level)
	logCfg.Format = log.ParseFormat(cfg.Log.Format)
	log.SetDefaultLogger(log.New(logCfg))

	return cfg, nil
}

func parseOutput() (report.Format, error) {
	return report.ParseFormat(outputFormat)
}
