package cmd

import (
	"github.com/spf13/cobra"

	"logdb-backup/internal/backup"
)

var (
	listTier   string
	listFormat string
)

// listCmd enumerates the artifact store.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List backup artifacts across all tiers",
	Long: `List the artifacts in the backup store, newest first within each
tier, with their manifest status.

Examples:
  logdb-backup list
  logdb-backup list --tier daily
  logdb-backup list --format yaml`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listTier, "tier", "", "limit to one tier (daily, weekly, monthly)")
	listCmd.Flags().StringVar(&listFormat, "format", "table", "output format (table, json, yaml)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store := backup.NewStore(cfg.Backup.Dir)

	var artifacts []*backup.Artifact
	if listTier != "" {
		tier, err := backup.ParseTier(listTier)
		if err != nil {
			return err
		}
		artifacts, err = store.ListTier(tier)
		if err != nil {
			return err
		}
	} else {
		artifacts, err = store.ListAll()
		if err != nil {
			return err
		}
	}

	return newRenderer(cfg).ArtifactList(artifacts, listFormat)
}
