// Package health runs a fixed battery of read-only probes against the
// logging database and aggregates a verdict. Probes always run in
// order and individual failures never stop the battery, so one run
// yields the maximum diagnostic output. Only mandatory probes
// (connectivity or file existence, table existence, integrity) decide
// the verdict; informational probes report but never flip it.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"logdb-backup/internal/config"
	"logdb-backup/internal/engine"
	"logdb-backup/internal/logging"
)

// Status of a single probe.
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	StatusInfo Status = "info"
)

// ProbeResult is one named probe outcome.
type ProbeResult struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Detail    string `json:"detail"`
	Mandatory bool   `json:"mandatory"`
}

// Report is the ordered sequence of probe results and the verdict.
type Report struct {
	Engine    config.EngineKind `json:"engine"`
	Database  string            `json:"database"`
	Timestamp time.Time         `json:"timestamp"`
	Results   []ProbeResult     `json:"results"`
	Passed    bool              `json:"passed"`
}

func (r *Report) add(result ProbeResult) {
	r.Results = append(r.Results, result)
	if result.Mandatory && result.Status == StatusFail {
		r.Passed = false
	}
}

// Checker runs the probe battery for the configured engine.
type Checker struct {
	cfg    *config.Config
	eng    engine.Engine
	logger *logging.Logger
	now    func() time.Time
}

// NewChecker creates a health checker.
func NewChecker(cfg *config.Config, eng engine.Engine, logger *logging.Logger) *Checker {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Checker{cfg: cfg, eng: eng, logger: logger, now: time.Now}
}

// Run opens the database and executes the battery. The returned error
// covers only setup problems; probe failures are in the report.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		Engine:    c.eng.Kind(),
		Database:  c.eng.DatabaseName(),
		Timestamp: c.now(),
		Passed:    true,
	}

	if c.eng.Kind() == config.EngineSQLite {
		// File existence gates everything else for the embedded engine.
		info, err := os.Stat(c.cfg.SQLite.Path)
		if err != nil {
			report.add(ProbeResult{
				Name:      "file_exists",
				Status:    StatusFail,
				Detail:    fmt.Sprintf("database file %s not accessible: %v", c.cfg.SQLite.Path, err),
				Mandatory: true,
			})
			return report, nil
		}
		report.add(ProbeResult{
			Name:      "file_exists",
			Status:    StatusPass,
			Detail:    c.cfg.SQLite.Path,
			Mandatory: true,
		})
		report.add(ProbeResult{
			Name:   "file_size",
			Status: StatusInfo,
			Detail: fmt.Sprintf("%d bytes", info.Size()),
		})
	}

	db, err := c.eng.Open()
	if err != nil {
		report.add(ProbeResult{
			Name:      "connectivity",
			Status:    StatusFail,
			Detail:    err.Error(),
			Mandatory: true,
		})
		return report, nil
	}
	defer db.Close()

	c.RunProbes(ctx, db, report)

	c.logger.WithFields(map[string]interface{}{
		"operation": "health_check",
		"passed":    report.Passed,
		"probes":    len(report.Results),
	}).Info("Health check completed")
	return report, nil
}

// RunProbes executes the engine-specific battery against an open
// handle. Exposed separately so probes can run against a mock.
func (c *Checker) RunProbes(ctx context.Context, db *sql.DB, report *Report) {
	switch c.eng.Kind() {
	case config.EngineSQLite:
		c.sqliteProbes(ctx, db, report)
	case config.EnginePostgres:
		c.postgresProbes(ctx, db, report)
	}
}
