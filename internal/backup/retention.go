package backup

import (
	"fmt"
	"time"

	"logdb-backup/internal/config"
	"logdb-backup/internal/logging"
)

// RetentionEnforcer deletes artifacts whose age exceeds the tier's
// window. Retention is strictly age-based on artifact mtime — the one
// canonical policy. There is deliberately no count-based mode.
type RetentionEnforcer struct {
	store  *Store
	config config.RetentionConfig
	logger *logging.Logger
	now    func() time.Time
}

// RetentionResult reports one retention pass. It is a plain value;
// callers aggregate it instead of sharing counters.
type RetentionResult struct {
	Tier       Tier        `json:"tier"`
	Processed  int         `json:"processed"`
	Deleted    int         `json:"deleted"`
	Kept       int         `json:"kept"`
	BytesFreed int64       `json:"bytes_freed"`
	DryRun     bool        `json:"dry_run"`
	Removed    []*Artifact `json:"-"`
	Errors     []string    `json:"errors,omitempty"`
}

// NewRetentionEnforcer creates an enforcer over the given store.
func NewRetentionEnforcer(store *Store, cfg config.RetentionConfig, logger *logging.Logger) *RetentionEnforcer {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &RetentionEnforcer{
		store:  store,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Enforce applies the tier's age window. exclude names an artifact
// path that is never deleted, regardless of age — the Backup Executor
// passes the artifact it just wrote.
func (re *RetentionEnforcer) Enforce(tier Tier, exclude string, dryRun bool) (*RetentionResult, error) {
	window, err := re.config.RetentionWindow(string(tier))
	if err != nil {
		return nil, err
	}

	artifacts, err := re.store.ListTier(tier)
	if err != nil {
		return nil, err
	}

	cutoff := re.now().Add(-window)
	result := &RetentionResult{
		Tier:      tier,
		Processed: len(artifacts),
		DryRun:    dryRun,
	}

	for _, artifact := range artifacts {
		if artifact.Path == exclude || !artifact.ModTime.Before(cutoff) {
			result.Kept++
			continue
		}

		if dryRun {
			result.Deleted++
			result.BytesFreed += artifact.Size
			result.Removed = append(result.Removed, artifact)
			continue
		}

		if err := re.store.Delete(artifact); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("delete %s: %v", artifact.Name, err))
			result.Kept++
			continue
		}
		re.logger.Debugf("Deleted expired artifact %s (age %s, window %s)",
			artifact.Name, re.now().Sub(artifact.ModTime).Round(time.Hour), window)
		result.Deleted++
		result.BytesFreed += artifact.Size
		result.Removed = append(result.Removed, artifact)
	}

	re.logger.LogRetentionResult(string(tier), result.Deleted, result.Kept, dryRun)
	return result, nil
}
