package engine

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"logdb-backup/internal/config"
	opserrors "logdb-backup/internal/errors"
	"logdb-backup/internal/logging"
)

// SQLiteEngine operates on a single-file database. Dumps require the
// sqlite3 CLI's .backup command, which is consistent even against a
// live WAL database; a plain file copy of a live database could
// capture an inconsistent snapshot, so a missing binary fails the
// backup. Restore replay falls back to a file copy, which is safe
// there because the writing service is stopped first.
type SQLiteEngine struct {
	path   string
	logger *logging.Logger
}

// NewSQLiteEngine creates an engine for the database file at path.
func NewSQLiteEngine(path string, logger *logging.Logger) *SQLiteEngine {
	return &SQLiteEngine{path: path, logger: logger}
}

func (e *SQLiteEngine) Kind() config.EngineKind { return config.EngineSQLite }

func (e *SQLiteEngine) DumpExtension() string { return "db" }

func (e *SQLiteEngine) DatabaseName() string { return e.path }

// Path returns the live database file path.
func (e *SQLiteEngine) Path() string { return e.path }

func (e *SQLiteEngine) LiveExists(ctx context.Context) (bool, error) {
	_, err := os.Stat(e.path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, opserrors.NewStorageError("failed to stat database file", err)
}

func (e *SQLiteEngine) Dump(ctx context.Context, destPath string) error {
	exists, err := e.LiveExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return opserrors.NewNotFoundError("database file does not exist: "+e.path, nil)
	}

	// A copy of a live WAL database can be inconsistent, so only the
	// CLI's .backup command is acceptable here.
	if _, err := lookPath("sqlite3"); err != nil {
		return opserrors.NewExternalToolError("sqlite3 binary not found in PATH", err)
	}

	start := time.Now()
	args := []string{e.path, fmt.Sprintf(".backup '%s'", destPath)}
	cmd := execCommand(ctx, "sqlite3", args...)
	output, err := cmd.CombinedOutput()
	e.logger.LogExternalCommand("sqlite3", args, time.Since(start), err)
	if err != nil {
		os.Remove(destPath)
		return opserrors.NewExternalToolError(
			"sqlite3 .backup failed: "+strings.TrimSpace(string(output)), err)
	}
	return nil
}

func (e *SQLiteEngine) Load(ctx context.Context, srcPath string) error {
	if _, err := lookPath("sqlite3"); err != nil {
		e.logger.Warn("sqlite3 binary not found, falling back to file copy")
		return copyFileAtomic(srcPath, e.path)
	}

	start := time.Now()
	args := []string{e.path, fmt.Sprintf(".restore '%s'", srcPath)}
	cmd := execCommand(ctx, "sqlite3", args...)
	output, err := cmd.CombinedOutput()
	e.logger.LogExternalCommand("sqlite3", args, time.Since(start), err)
	if err != nil {
		return opserrors.NewExternalToolError(
			"sqlite3 .restore failed: "+strings.TrimSpace(string(output)), err)
	}
	return nil
}

func (e *SQLiteEngine) BackupCurrent(ctx context.Context, asidePath string) error {
	return copyFileAtomic(e.path, asidePath)
}

// ReplaceTarget deletes the live file and its WAL side files. The
// writing service must already be stopped.
func (e *SQLiteEngine) ReplaceTarget(ctx context.Context) error {
	for _, path := range []string{e.path, e.path + "-wal", e.path + "-shm"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return opserrors.NewStorageError("failed to remove "+path, err)
		}
	}
	return nil
}

func (e *SQLiteEngine) Open() (*sql.DB, error) {
	db, err := sql.Open("sqlite", e.path)
	if err != nil {
		return nil, opserrors.NewDatabaseError("failed to open sqlite database", err)
	}
	return db, nil
}

func (e *SQLiteEngine) CheckIntegrity(ctx context.Context, db *sql.DB) error {
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return opserrors.NewVerificationError("integrity check query failed", err)
	}
	if result != "ok" {
		return opserrors.NewVerificationError("integrity check reported: "+result, nil)
	}
	return nil
}

func (e *SQLiteEngine) RowCount(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %q", table)
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, opserrors.NewDatabaseError("row count query failed for table "+table, err)
	}
	return count, nil
}

// copyFileAtomic copies src to dst via a temp file and rename so a
// failed copy never leaves a partial destination.
func copyFileAtomic(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return opserrors.NewStorageError("failed to open "+src, err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return opserrors.NewStorageError("failed to create "+tmp, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return opserrors.NewStorageError("failed to copy "+src, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return opserrors.NewStorageError("failed to finalize "+tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return opserrors.NewStorageError("failed to move "+tmp+" into place", err)
	}
	return nil
}
