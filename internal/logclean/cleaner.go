// Package logclean removes expired CI log subtrees under a root
// directory. Two independent two-level trees are walked: GitLab
// pipeline logs under <root>/<project>/<pipeline> and Jenkins build
// logs under <root>/jenkins-builds/<job>/<build>.
//
// Age is judged by the subtree directory's own mtime, not the mtime
// of any contained file. This matches the producing pipeline's layout
// but is unreliable when files are written into an old directory;
// callers should be aware a metadata touch resets the clock.
package logclean

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	opserrors "logdb-backup/internal/errors"
	"logdb-backup/internal/logging"
)

// jenkinsDirName is the reserved subdirectory holding Jenkins builds;
// it is never treated as a GitLab project.
const jenkinsDirName = "jenkins-builds"

var buildNumberRe = regexp.MustCompile(`^\d+$`)

// Options select which trees to process and whether to mutate.
type Options struct {
	RetentionDays int
	DryRun        bool
	GitLabOnly    bool
	JenkinsOnly   bool
}

// Removal records one subtree that was (or would be) deleted.
type Removal struct {
	Path  string        `json:"path"`
	Tree  string        `json:"tree"` // "gitlab" or "jenkins"
	Age   time.Duration `json:"age"`
	Bytes int64         `json:"bytes"`
}

// Report is the explicit result of one cleanup pass. All counters
// live here; the cleaner keeps no shared state.
type Report struct {
	Root          string    `json:"root"`
	DryRun        bool      `json:"dry_run"`
	Scanned       int       `json:"scanned"`
	Removed       []Removal `json:"removed"`
	PrunedEmpty   []string  `json:"pruned_empty"`
	BytesFreed    int64     `json:"bytes_freed"`
	Errors        []string  `json:"errors,omitempty"`
	GitLabWalked  bool      `json:"gitlab_walked"`
	JenkinsWalked bool      `json:"jenkins_walked"`
}

// Cleaner walks the log root and removes expired subtrees.
type Cleaner struct {
	root   string
	logger *logging.Logger
	now    func() time.Time
}

// NewCleaner creates a cleaner over the given root.
func NewCleaner(root string, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Cleaner{root: root, logger: logger, now: time.Now}
}

// Run executes one cleanup pass and returns its report. A dry run
// never mutates the filesystem; a subsequent real run with the same
// inputs deletes exactly the subtrees the dry run reported.
func (c *Cleaner) Run(opts Options) (*Report, error) {
	if opts.GitLabOnly && opts.JenkinsOnly {
		return nil, opserrors.NewConfigurationError("--gitlab-only and --jenkins-only are mutually exclusive", nil)
	}
	if opts.RetentionDays < 1 {
		return nil, opserrors.NewConfigurationError(
			fmt.Sprintf("retention days must be at least 1, got %d", opts.RetentionDays), nil)
	}
	if _, err := os.Stat(c.root); err != nil {
		return nil, opserrors.NewNotFoundError("log root "+c.root+" not accessible", err)
	}

	cutoff := c.now().Add(-time.Duration(opts.RetentionDays) * 24 * time.Hour)
	report := &Report{Root: c.root, DryRun: opts.DryRun}

	if !opts.JenkinsOnly {
		report.GitLabWalked = true
		c.cleanGitLab(cutoff, opts.DryRun, report)
	}
	if !opts.GitLabOnly {
		report.JenkinsWalked = true
		c.cleanJenkins(cutoff, opts.DryRun, report)
	}

	c.logger.WithFields(map[string]interface{}{
		"operation":   "log_clean",
		"removed":     len(report.Removed),
		"bytes_freed": report.BytesFreed,
		"dry_run":     opts.DryRun,
	}).Info("Log cleanup pass completed")
	return report, nil
}

// cleanGitLab walks <root>/<project>/<pipeline>.
func (c *Cleaner) cleanGitLab(cutoff time.Time, dryRun bool, report *Report) {
	projects, err := os.ReadDir(c.root)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("read %s: %v", c.root, err))
		return
	}

	for _, project := range projects {
		if !project.IsDir() || project.Name() == jenkinsDirName {
			continue
		}
		projectDir := filepath.Join(c.root, project.Name())
		c.cleanChildren(projectDir, "gitlab", nil, cutoff, dryRun, report)
		c.pruneIfEmpty(projectDir, dryRun, report)
	}
}

// cleanJenkins walks <root>/jenkins-builds/<job>/<build> where build
// is purely numeric.
func (c *Cleaner) cleanJenkins(cutoff time.Time, dryRun bool, report *Report) {
	jenkinsRoot := filepath.Join(c.root, jenkinsDirName)
	jobs, err := os.ReadDir(jenkinsRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return
		}
		report.Errors = append(report.Errors, fmt.Sprintf("read %s: %v", jenkinsRoot, err))
		return
	}

	for _, job := range jobs {
		if !job.IsDir() {
			continue
		}
		jobDir := filepath.Join(jenkinsRoot, job.Name())
		c.cleanChildren(jobDir, "jenkins", buildNumberRe, cutoff, dryRun, report)
		c.pruneIfEmpty(jobDir, dryRun, report)
	}
}

// cleanChildren removes expired child directories of parent. When
// nameFilter is non-nil, children whose names do not match are
// skipped entirely.
func (c *Cleaner) cleanChildren(parent, tree string, nameFilter *regexp.Regexp, cutoff time.Time, dryRun bool, report *Report) {
	children, err := os.ReadDir(parent)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("read %s: %v", parent, err))
		return
	}

	for _, child := range children {
		if !child.IsDir() {
			continue
		}
		if nameFilter != nil && !nameFilter.MatchString(child.Name()) {
			continue
		}
		report.Scanned++

		childPath := filepath.Join(parent, child.Name())
		info, err := child.Info()
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("stat %s: %v", childPath, err))
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		size, err := dirSize(childPath)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("size %s: %v", childPath, err))
		}

		if !dryRun {
			if err := os.RemoveAll(childPath); err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("remove %s: %v", childPath, err))
				continue
			}
		}

		report.Removed = append(report.Removed, Removal{
			Path:  childPath,
			Tree:  tree,
			Age:   c.now().Sub(info.ModTime()),
			Bytes: size,
		})
		report.BytesFreed += size
		c.logger.Debugf("Removed expired %s subtree %s (%s)", tree, childPath, FormatBytes(size))
	}
}

// pruneIfEmpty removes a parent directory once all its children are
// gone. In dry-run mode a parent counts as prunable when every child
// was reported for removal.
func (c *Cleaner) pruneIfEmpty(dir string, dryRun bool, report *Report) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	if dryRun {
		remaining := len(entries)
		for _, entry := range entries {
			child := filepath.Join(dir, entry.Name())
			for _, removal := range report.Removed {
				if removal.Path == child {
					remaining--
					break
				}
			}
		}
		if remaining == 0 {
			report.PrunedEmpty = append(report.PrunedEmpty, dir)
		}
		return
	}

	if len(entries) == 0 {
		if err := os.Remove(dir); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("prune %s: %v", dir, err))
			return
		}
		report.PrunedEmpty = append(report.PrunedEmpty, dir)
	}
}

// dirSize sums the sizes of all regular files under path.
func dirSize(path string) (int64, error) {
	var total int64
	err := filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// FormatBytes renders a byte count with binary (1024) multiples.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
