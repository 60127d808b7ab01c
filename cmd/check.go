package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"logdb-backup/internal/engine"
	"logdb-backup/internal/health"
)

var checkFormat string

// checkCmd runs the health probe battery.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the health probe battery against the logging database",
	Long: `Run a fixed battery of read-only probes and report a verdict.

Probes continue past individual failures to maximize diagnostic
output. The exit code is 0 only when every mandatory probe
(connectivity or file existence, table existence, integrity) passed;
informational probes such as size or connection count never flip the
verdict.

Examples:
  logdb-backup check
  logdb-backup check --format json`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkFormat, "format", "table", "output format (table, json)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return err
	}

	checker := health.NewChecker(cfg, eng, logger)
	report, err := checker.Run(context.Background())
	if err != nil {
		return err
	}

	if err := newRenderer(cfg).HealthReport(report, checkFormat); err != nil {
		return err
	}
	if !report.Passed {
		return fmt.Errorf("health check failed: a mandatory probe did not pass")
	}
	return nil
}
