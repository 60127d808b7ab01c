package engine

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"logdb-backup/internal/config"
	opserrors "logdb-backup/internal/errors"
	"logdb-backup/internal/logging"
)

// PostgresEngine wraps pg_dump and pg_restore for artifact transfer
// and lib/pq for probes and database drop/create. Dumps use the
// custom format (-Fc) so pg_restore can replay them.
type PostgresEngine struct {
	dsn      string
	database string
	logger   *logging.Logger
}

// NewPostgresEngine creates an engine for the database named in the
// DSN. The DSN may be a postgres:// URL or a key=value conninfo
// string; both are accepted by pg_dump, pg_restore and lib/pq.
func NewPostgresEngine(dsn, database string, logger *logging.Logger) (*PostgresEngine, error) {
	if dsn == "" {
		return nil, opserrors.NewConfigurationError("postgres DSN must not be empty", nil)
	}
	return &PostgresEngine{dsn: dsn, database: database, logger: logger}, nil
}

func (e *PostgresEngine) Kind() config.EngineKind { return config.EnginePostgres }

func (e *PostgresEngine) DumpExtension() string { return "dump" }

func (e *PostgresEngine) DatabaseName() string { return e.database }

// adminDSN rewrites the DSN to point at the maintenance database so
// the target can be dropped and recreated.
func (e *PostgresEngine) adminDSN() (string, error) {
	if strings.HasPrefix(e.dsn, "postgres://") || strings.HasPrefix(e.dsn, "postgresql://") {
		u, err := url.Parse(e.dsn)
		if err != nil {
			return "", opserrors.NewConfigurationError("invalid postgres DSN", err)
		}
		u.Path = "/postgres"
		return u.String(), nil
	}
	// conninfo form: drop any dbname token, then point at postgres
	var parts []string
	for _, token := range strings.Fields(e.dsn) {
		if strings.HasPrefix(token, "dbname=") {
			continue
		}
		parts = append(parts, token)
	}
	parts = append(parts, "dbname=postgres")
	return strings.Join(parts, " "), nil
}

func (e *PostgresEngine) openAdmin() (*sql.DB, error) {
	admin, err := e.adminDSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("postgres", admin)
	if err != nil {
		return nil, opserrors.NewDatabaseError("failed to open maintenance connection", err)
	}
	return db, nil
}

func (e *PostgresEngine) LiveExists(ctx context.Context) (bool, error) {
	db, err := e.openAdmin()
	if err != nil {
		return false, err
	}
	defer db.Close()

	var exists bool
	err = db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", e.database).Scan(&exists)
	if err != nil {
		return false, opserrors.NewDatabaseError("failed to check database existence", err)
	}
	return exists, nil
}

func (e *PostgresEngine) Dump(ctx context.Context, destPath string) error {
	if _, err := lookPath("pg_dump"); err != nil {
		return opserrors.NewExternalToolError("pg_dump binary not found in PATH", err)
	}

	start := time.Now()
	args := []string{"--format=custom", "--file=" + destPath, "--dbname=" + e.dsn}
	cmd := execCommand(ctx, "pg_dump", args...)
	output, err := cmd.CombinedOutput()
	e.logger.LogExternalCommand("pg_dump", []string{"--format=custom", "--file=" + destPath}, time.Since(start), err)
	if err != nil {
		os.Remove(destPath)
		return opserrors.NewExternalToolError(
			"pg_dump failed: "+strings.TrimSpace(string(output)), err)
	}
	return nil
}

func (e *PostgresEngine) Load(ctx context.Context, srcPath string) error {
	if _, err := lookPath("pg_restore"); err != nil {
		return opserrors.NewExternalToolError("pg_restore binary not found in PATH", err)
	}

	start := time.Now()
	args := []string{"--no-owner", "--no-privileges", "--dbname=" + e.dsn, srcPath}
	cmd := execCommand(ctx, "pg_restore", args...)
	output, err := cmd.CombinedOutput()
	e.logger.LogExternalCommand("pg_restore", []string{"--no-owner", "--no-privileges", srcPath}, time.Since(start), err)
	if err != nil {
		return opserrors.NewExternalToolError(
			"pg_restore failed: "+strings.TrimSpace(string(output)), err)
	}
	return nil
}

func (e *PostgresEngine) BackupCurrent(ctx context.Context, asidePath string) error {
	return e.Dump(ctx, asidePath)
}

// ReplaceTarget drops and recreates the target database through the
// maintenance connection.
func (e *PostgresEngine) ReplaceTarget(ctx context.Context) error {
	db, err := e.openAdmin()
	if err != nil {
		return err
	}
	defer db.Close()

	quoted := quoteIdentifier(e.database)
	if _, err := db.ExecContext(ctx, "DROP DATABASE IF EXISTS "+quoted); err != nil {
		return opserrors.NewDatabaseError("failed to drop database "+e.database, err)
	}
	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+quoted); err != nil {
		return opserrors.NewDatabaseError("failed to create database "+e.database, err)
	}
	return nil
}

func (e *PostgresEngine) Open() (*sql.DB, error) {
	db, err := sql.Open("postgres", e.dsn)
	if err != nil {
		return nil, opserrors.NewDatabaseError("failed to open postgres connection", err)
	}
	return db, nil
}

func (e *PostgresEngine) CheckIntegrity(ctx context.Context, db *sql.DB) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return opserrors.NewVerificationError("connectivity probe failed", err)
	}
	return nil
}

func (e *PostgresEngine) RowCount(ctx context.Context, db *sql.DB, table string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdentifier(table))
	if err := db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, opserrors.NewDatabaseError("row count query failed for table "+table, err)
	}
	return count, nil
}

// quoteIdentifier double-quotes a SQL identifier, escaping embedded
// quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
