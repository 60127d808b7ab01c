// Package engine wraps the native tooling of the supported database
// engines behind one interface: sqlite3 for the embedded-file engine,
// pg_dump/pg_restore and lib/pq for the server engine. Every wrapped
// binary runs to completion before the caller proceeds; there are no
// timeouts beyond the passed context.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os/exec"

	"logdb-backup/internal/config"
	"logdb-backup/internal/logging"
)

// Engine abstracts the database-specific side of backup, restore and
// verification. One instance is built from the resolved configuration
// at startup and passed explicitly to every component.
type Engine interface {
	// Kind identifies the engine.
	Kind() config.EngineKind

	// DumpExtension is the raw artifact extension before compression.
	DumpExtension() string

	// Dump writes an uncompressed dump of the live database to
	// destPath. Implementations must not leave a partial file behind
	// on failure.
	Dump(ctx context.Context, destPath string) error

	// Load replays a raw dump at srcPath into the live database,
	// which ReplaceTarget has already emptied.
	Load(ctx context.Context, srcPath string) error

	// LiveExists reports whether there is a live database to protect.
	LiveExists(ctx context.Context) (bool, error)

	// BackupCurrent copies the live database aside to asidePath. This
	// is the single safety net against a bad restore; it is never
	// restored automatically.
	BackupCurrent(ctx context.Context, asidePath string) error

	// ReplaceTarget destroys the live database: drop and recreate for
	// the server engine, file deletion (including WAL side files) for
	// the embedded engine.
	ReplaceTarget(ctx context.Context) error

	// Open returns a database/sql handle for probes and row counts.
	Open() (*sql.DB, error)

	// CheckIntegrity runs the engine-native integrity probe.
	CheckIntegrity(ctx context.Context, db *sql.DB) error

	// RowCount counts rows in a table.
	RowCount(ctx context.Context, db *sql.DB, table string) (int64, error)

	// DatabaseName names the target for logs and manifests.
	DatabaseName() string
}

// execCommand is swapped out in tests to intercept external binaries.
var execCommand = exec.CommandContext

// lookPath is swapped out in tests to simulate missing binaries.
var lookPath = exec.LookPath

// New builds the engine selected by the configuration.
func New(cfg *config.Config, logger *logging.Logger) (Engine, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	switch cfg.Engine {
	case config.EngineSQLite:
		return NewSQLiteEngine(cfg.SQLite.Path, logger), nil
	case config.EnginePostgres:
		return NewPostgresEngine(cfg.Postgres.DSN, cfg.Postgres.Database, logger)
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}
