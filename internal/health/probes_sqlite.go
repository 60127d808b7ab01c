package health

import (
	"context"
	"database/sql"
	"fmt"
)

// Probe battery for the embedded-file engine. Rows are considered
// recent when their created_at timestamp falls within the last hour,
// matching the cadence of the log-extraction pipeline.
func (c *Checker) sqliteProbes(ctx context.Context, db *sql.DB, report *Report) {
	table := c.cfg.Table

	// Integrity: engine-native pragma, mandatory.
	var integrity string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		report.add(ProbeResult{Name: "integrity", Status: StatusFail, Detail: err.Error(), Mandatory: true})
	} else if integrity != "ok" {
		report.add(ProbeResult{Name: "integrity", Status: StatusFail, Detail: integrity, Mandatory: true})
	} else {
		report.add(ProbeResult{Name: "integrity", Status: StatusPass, Detail: "ok", Mandatory: true})
	}

	// Table existence, mandatory. A missing table fails the verdict but
	// the battery continues; only the probes querying the table itself
	// are skipped.
	tableOK := true
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
	switch {
	case err == sql.ErrNoRows:
		report.add(ProbeResult{Name: "table_exists", Status: StatusFail,
			Detail: fmt.Sprintf("table %s not found", table), Mandatory: true})
		tableOK = false
	case err != nil:
		report.add(ProbeResult{Name: "table_exists", Status: StatusFail, Detail: err.Error(), Mandatory: true})
		tableOK = false
	default:
		report.add(ProbeResult{Name: "table_exists", Status: StatusPass, Detail: table, Mandatory: true})
	}

	if tableOK {
		// Row count, informational.
		var count int64
		if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&count); err != nil {
			report.add(ProbeResult{Name: "row_count", Status: StatusFail, Detail: err.Error()})
		} else {
			report.add(ProbeResult{Name: "row_count", Status: StatusInfo, Detail: fmt.Sprintf("%d rows", count)})
		}

		// Recent activity, informational.
		var recent int64
		query := fmt.Sprintf("SELECT COUNT(*) FROM %q WHERE created_at >= datetime('now', '-1 hour')", table)
		if err := db.QueryRowContext(ctx, query).Scan(&recent); err != nil {
			report.add(ProbeResult{Name: "recent_rows", Status: StatusFail, Detail: err.Error()})
		} else {
			report.add(ProbeResult{Name: "recent_rows", Status: StatusInfo,
				Detail: fmt.Sprintf("%d rows in the last hour", recent)})
		}
	}

	// WAL mode flag, informational.
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		report.add(ProbeResult{Name: "journal_mode", Status: StatusFail, Detail: err.Error()})
	} else {
		report.add(ProbeResult{Name: "journal_mode", Status: StatusInfo, Detail: mode})
	}
}
