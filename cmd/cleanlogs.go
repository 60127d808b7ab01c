package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"logdb-backup/internal/logclean"
)

var (
	cleanDays        int
	cleanDryRun      bool
	cleanGitLabOnly  bool
	cleanJenkinsOnly bool
)

// cleanLogsCmd removes expired CI log subtrees.
var cleanLogsCmd = &cobra.Command{
	Use:   "clean-logs",
	Short: "Remove expired CI log directories",
	Long: `Walk the configured log root and remove pipeline and build
subtrees whose directory mtime exceeds the retention window.

Two trees are processed: GitLab pipeline logs under
<root>/<project>/<pipeline> and Jenkins build logs under
<root>/jenkins-builds/<job>/<build> (numeric build directories only).
Empty parent directories are pruned afterwards.

Examples:
  logdb-backup clean-logs --days 30 --dry-run
  logdb-backup clean-logs --jenkins-only`,
	RunE: runCleanLogs,
}

func init() {
	cleanLogsCmd.Flags().IntVar(&cleanDays, "days", 0, "retention window in days (default from config)")
	cleanLogsCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "report deletions without performing them")
	cleanLogsCmd.Flags().BoolVar(&cleanGitLabOnly, "gitlab-only", false, "process only the GitLab tree")
	cleanLogsCmd.Flags().BoolVar(&cleanJenkinsOnly, "jenkins-only", false, "process only the Jenkins tree")
	cleanLogsCmd.MarkFlagsMutuallyExclusive("gitlab-only", "jenkins-only")
	rootCmd.AddCommand(cleanLogsCmd)
}

func runCleanLogs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	days := cleanDays
	if days == 0 {
		days = cfg.Logs.RetentionDays
	}

	cleaner := logclean.NewCleaner(cfg.Logs.Root, logger)
	report, err := cleaner.Run(logclean.Options{
		RetentionDays: days,
		DryRun:        cleanDryRun,
		GitLabOnly:    cleanGitLabOnly,
		JenkinsOnly:   cleanJenkinsOnly,
	})
	if err != nil {
		return fmt.Errorf("log cleanup failed: %w", err)
	}

	newRenderer(cfg).CleanReport(report)
	return nil
}
