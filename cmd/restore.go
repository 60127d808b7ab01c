package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"logdb-backup/internal/backup"
	"logdb-backup/internal/confirm"
	"logdb-backup/internal/engine"
	"logdb-backup/internal/restore"
	"logdb-backup/internal/service"
)

var restoreYes bool

// restoreCmd replays an artifact into the live database.
var restoreCmd = &cobra.Command{
	Use:   "restore <artifact-path>",
	Short: "Restore a backup artifact into the live database",
	Long: `Restore a backup artifact, destroying the current database.

The workflow stops the dependent service, copies the live database
aside as a safety net, replaces the target, replays the artifact,
verifies integrity and row count, and restarts the service. A
verification failure after replay exits non-zero and leaves the
safety-net copy in place for manual recovery.

Examples:
  logdb-backup restore backups/daily/sqlite_daily_20250105_020000.db.gz
  logdb-backup restore backups/weekly/postgres_weekly_20250101_030000.dump.zst --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreYes, "yes", false, "skip the interactive confirmation")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
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

	var confirmer confirm.Confirmer = confirm.NewInteractive()
	if restoreYes {
		confirmer = confirm.AutoApprove{}
	}

	store := backup.NewStore(cfg.Backup.Dir)
	svc := service.NewDockerController(cfg.Service.Container, logger)
	executor := restore.NewExecutor(cfg, eng, store, svc, confirmer, logger)

	result, err := executor.Run(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("restore failed at step %s: %w", result.FinalStep, err)
	}
	if result.Cancelled {
		return fmt.Errorf("restore cancelled, nothing was changed")
	}

	fmt.Printf("Restore completed: %d rows in %s\n", result.RowCount, cfg.Table)
	return nil
}
