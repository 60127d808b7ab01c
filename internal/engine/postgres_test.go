package engine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logdb-backup/internal/config"
	opserrors "logdb-backup/internal/errors"
	"logdb-backup/internal/logging"
)

func newPostgresFixture(t *testing.T, dsn string) *PostgresEngine {
	t.Helper()
	eng, err := NewPostgresEngine(dsn, "logdb", logging.NewDefaultLogger())
	require.NoError(t, err)
	return eng
}

// stubExecCommand replaces every external binary with a shell stub and
// records the invocations.
func stubExecCommand(t *testing.T, script string) *[][]string {
	t.Helper()
	var calls [][]string
	origExec := execCommand
	origLook := lookPath
	t.Cleanup(func() {
		execCommand = origExec
		lookPath = origLook
	})
	lookPath = func(string) (string, error) { return "/usr/bin/stub", nil }
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		return exec.CommandContext(ctx, "sh", "-c", script)
	}
	return &calls
}

func TestNewPostgresEngineRequiresDSN(t *testing.T) {
	_, err := NewPostgresEngine("", "logdb", logging.NewDefaultLogger())
	require.Error(t, err)
	assert.Equal(t, opserrors.ErrorTypeConfiguration, opserrors.TypeOf(err))
}

func TestPostgresKind(t *testing.T) {
	eng := newPostgresFixture(t, "postgres://user:pass@db:5432/logdb")
	assert.Equal(t, config.EnginePostgres, eng.Kind())
	assert.Equal(t, "dump", eng.DumpExtension())
	assert.Equal(t, "logdb", eng.DatabaseName())
}

func TestAdminDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{
			name: "url form",
			dsn:  "postgres://user:pass@db:5432/logdb?sslmode=disable",
			want: "postgres://user:pass@db:5432/postgres?sslmode=disable",
		},
		{
			name: "postgresql scheme",
			dsn:  "postgresql://db/logdb",
			want: "postgresql://db/postgres",
		},
		{
			name: "conninfo form replaces dbname",
			dsn:  "host=db port=5432 user=u dbname=logdb sslmode=disable",
			want: "host=db port=5432 user=u sslmode=disable dbname=postgres",
		},
		{
			name: "conninfo form without dbname",
			dsn:  "host=db user=u",
			want: "host=db user=u dbname=postgres",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newPostgresFixture(t, tt.dsn)
			got, err := eng.adminDSN()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPostgresDump(t *testing.T) {
	calls := stubExecCommand(t, "exit 0")
	eng := newPostgresFixture(t, "postgres://db/logdb")

	dest := filepath.Join(t.TempDir(), "out.dump")
	require.NoError(t, eng.Dump(context.Background(), dest))

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "pg_dump", call[0])
	assert.Contains(t, call, "--format=custom")
	assert.Contains(t, call, "--file="+dest)
	assert.Contains(t, call, "--dbname=postgres://db/logdb")
}

func TestPostgresDumpFailureRemovesPartialFile(t *testing.T) {
	stubExecCommand(t, "echo 'connection refused' >&2; exit 1")
	eng := newPostgresFixture(t, "postgres://db/logdb")

	dest := filepath.Join(t.TempDir(), "out.dump")
	// Simulate the partial file a failed pg_dump leaves behind.
	require.NoError(t, os.WriteFile(dest, []byte("partial"), 0o640))

	err := eng.Dump(context.Background(), dest)
	require.Error(t, err)
	assert.Equal(t, opserrors.ErrorTypeExternalTool, opserrors.TypeOf(err))
	assert.Contains(t, err.Error(), "connection refused")

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPostgresLoad(t *testing.T) {
	calls := stubExecCommand(t, "exit 0")
	eng := newPostgresFixture(t, "postgres://db/logdb")

	require.NoError(t, eng.Load(context.Background(), "/backups/daily/a.dump"))

	require.Len(t, *calls, 1)
	call := (*calls)[0]
	assert.Equal(t, "pg_restore", call[0])
	assert.Contains(t, call, "--no-owner")
	assert.Contains(t, call, "--no-privileges")
	assert.Contains(t, call, "/backups/daily/a.dump")
}

func TestPostgresDumpMissingBinary(t *testing.T) {
	stubLookPath(t, "pg_dump")
	eng := newPostgresFixture(t, "postgres://db/logdb")

	err := eng.Dump(context.Background(), filepath.Join(t.TempDir(), "out.dump"))
	require.Error(t, err)
	assert.Equal(t, opserrors.ErrorTypeExternalTool, opserrors.TypeOf(err))
}

func TestPostgresRowCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	eng := newPostgresFixture(t, "postgres://db/logdb")

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "log_entries"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1234))

	count, err := eng.RowCount(context.Background(), db, "log_entries")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCheckIntegrity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	eng := newPostgresFixture(t, "postgres://db/logdb")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	assert.NoError(t, eng.CheckIntegrity(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteIdentifier(t *testing.T) {
	assert.Equal(t, `"logdb"`, quoteIdentifier("logdb"))
	assert.Equal(t, `"we""ird"`, quoteIdentifier(`we"ird`))
}
