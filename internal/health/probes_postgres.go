package health

import (
	"context"
	"database/sql"
	"fmt"
)

// Probe battery for the server-based engine.
func (c *Checker) postgresProbes(ctx context.Context, db *sql.DB, report *Report) {
	table := c.cfg.Table

	// Connectivity, mandatory. Doubles as the integrity probe for the
	// server engine: a responding server with a visible catalog is as
	// close as a read-only client gets.
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		report.add(ProbeResult{Name: "connectivity", Status: StatusFail, Detail: err.Error(), Mandatory: true})
		return
	}
	report.add(ProbeResult{Name: "connectivity", Status: StatusPass, Detail: "server responding", Mandatory: true})

	// Table existence, mandatory. A missing table fails the verdict but
	// the battery continues; only the probes querying the table itself
	// are skipped.
	tableOK := true
	var regclass sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)::text", table).Scan(&regclass); err != nil {
		report.add(ProbeResult{Name: "table_exists", Status: StatusFail, Detail: err.Error(), Mandatory: true})
		tableOK = false
	} else if !regclass.Valid {
		report.add(ProbeResult{Name: "table_exists", Status: StatusFail,
			Detail: fmt.Sprintf("table %s not found", table), Mandatory: true})
		tableOK = false
	} else {
		report.add(ProbeResult{Name: "table_exists", Status: StatusPass, Detail: table, Mandatory: true})
	}

	if tableOK {
		// Row count, informational.
		var count int64
		if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&count); err != nil {
			report.add(ProbeResult{Name: "row_count", Status: StatusFail, Detail: err.Error()})
		} else {
			report.add(ProbeResult{Name: "row_count", Status: StatusInfo, Detail: fmt.Sprintf("%d rows", count)})
		}

		// Recent activity, informational.
		var recent int64
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %q WHERE created_at >= now() - interval '1 hour'`, table)
		if err := db.QueryRowContext(ctx, query).Scan(&recent); err != nil {
			report.add(ProbeResult{Name: "recent_rows", Status: StatusFail, Detail: err.Error()})
		} else {
			report.add(ProbeResult{Name: "recent_rows", Status: StatusInfo,
				Detail: fmt.Sprintf("%d rows in the last hour", recent)})
		}
	}

	// Database size, informational.
	var size string
	if err := db.QueryRowContext(ctx,
		"SELECT pg_size_pretty(pg_database_size(current_database()))").Scan(&size); err != nil {
		report.add(ProbeResult{Name: "database_size", Status: StatusFail, Detail: err.Error()})
	} else {
		report.add(ProbeResult{Name: "database_size", Status: StatusInfo, Detail: size})
	}

	// Active connections, informational.
	var connections int64
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pg_stat_activity WHERE datname = current_database()").Scan(&connections); err != nil {
		report.add(ProbeResult{Name: "active_connections", Status: StatusFail, Detail: err.Error()})
	} else {
		report.add(ProbeResult{Name: "active_connections", Status: StatusInfo,
			Detail: fmt.Sprintf("%d connections", connections)})
	}

	// Last maintenance, informational.
	var lastVacuum, lastAnalyze sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(last_autovacuum::text, last_vacuum::text), COALESCE(last_autoanalyze::text, last_analyze::text)
		 FROM pg_stat_user_tables WHERE relname = $1`, table).Scan(&lastVacuum, &lastAnalyze)
	switch {
	case err == sql.ErrNoRows:
		report.add(ProbeResult{Name: "last_maintenance", Status: StatusInfo, Detail: "no statistics recorded"})
	case err != nil:
		report.add(ProbeResult{Name: "last_maintenance", Status: StatusFail, Detail: err.Error()})
	default:
		detail := "vacuum: never, analyze: never"
		if lastVacuum.Valid || lastAnalyze.Valid {
			detail = fmt.Sprintf("vacuum: %s, analyze: %s", nullableText(lastVacuum), nullableText(lastAnalyze))
		}
		report.add(ProbeResult{Name: "last_maintenance", Status: StatusInfo, Detail: detail})
	}
}

func nullableText(v sql.NullString) string {
	if v.Valid {
		return v.String
	}
	return "never"
}
