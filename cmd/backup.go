package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"logdb-backup/internal/backup"
	"logdb-backup/internal/engine"
)

// backupCmd creates a backup artifact for a policy tier and then
// enforces retention for that tier.
var backupCmd = &cobra.Command{
	Use:   "backup [daily|weekly|monthly]",
	Short: "Create a backup artifact and enforce retention for its tier",
	Long: `Create a compressed, manifest-carrying backup artifact of the logging
database in backups/<tier>/, then delete artifacts in that tier older
than the tier's retention window.

The artifact just written is never removed by the retention pass.

Examples:
  logdb-backup backup daily
  logdb-backup backup monthly --verbose`,
	Args: cobra.ExactArgs(1),
	RunE: runBackup,
}

func init() {
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	tier, err := backup.ParseTier(args[0])
	if err != nil {
		return err
	}

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

	var uploader backup.OffsiteUploader
	if cfg.Backup.Offsite.S3 != nil {
		uploader, err = backup.NewS3Uploader(cfg.Backup.Offsite.S3)
		if err != nil {
			return err
		}
	}

	store := backup.NewStore(cfg.Backup.Dir)
	executor := backup.NewExecutor(cfg, eng, store, uploader, logger, version)

	result, err := executor.Run(context.Background(), tier)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	newRenderer(cfg).BackupResult(result)
	return nil
}
