package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logdb-backup/internal/config"
	opserrors "logdb-backup/internal/errors"
	"logdb-backup/internal/logging"
)

// stubLookPath makes the named binaries invisible for the duration of
// the test.
func stubLookPath(t *testing.T, missing ...string) {
	t.Helper()
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(name string) (string, error) {
		for _, m := range missing {
			if name == m {
				return "", errors.New("executable file not found in $PATH")
			}
		}
		return orig(name)
	}
}

func newSQLiteFixture(t *testing.T) (*SQLiteEngine, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs.db")
	return NewSQLiteEngine(path, logging.NewDefaultLogger()), path
}

func TestSQLiteKind(t *testing.T) {
	eng, _ := newSQLiteFixture(t)
	assert.Equal(t, config.EngineSQLite, eng.Kind())
	assert.Equal(t, "db", eng.DumpExtension())
}

func TestSQLiteLiveExists(t *testing.T) {
	eng, path := newSQLiteFixture(t)

	exists, err := eng.LiveExists(context.Background())
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, os.WriteFile(path, []byte("data"), 0o640))
	exists, err = eng.LiveExists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSQLiteDumpMissingDatabase(t *testing.T) {
	eng, _ := newSQLiteFixture(t)

	err := eng.Dump(context.Background(), filepath.Join(t.TempDir(), "out.db"))
	require.Error(t, err)
	assert.Equal(t, opserrors.ErrorTypeNotFound, opserrors.TypeOf(err))
}

func TestSQLiteDumpMissingBinary(t *testing.T) {
	// A live WAL database cannot be copied consistently, so a missing
	// sqlite3 binary fails the dump instead of degrading to a copy.
	stubLookPath(t, "sqlite3")
	eng, path := newSQLiteFixture(t)
	require.NoError(t, os.WriteFile(path, []byte("sqlite payload"), 0o640))

	dest := filepath.Join(t.TempDir(), "out.db")
	err := eng.Dump(context.Background(), dest)
	require.Error(t, err)
	assert.Equal(t, opserrors.ErrorTypeExternalTool, opserrors.TypeOf(err))

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSQLiteLoadFallbackCopy(t *testing.T) {
	stubLookPath(t, "sqlite3")
	eng, path := newSQLiteFixture(t)

	src := filepath.Join(t.TempDir(), "artifact.db")
	require.NoError(t, os.WriteFile(src, []byte("restored payload"), 0o640))

	require.NoError(t, eng.Load(context.Background(), src))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("restored payload"), data)
}

func TestSQLiteBackupCurrent(t *testing.T) {
	eng, path := newSQLiteFixture(t)
	require.NoError(t, os.WriteFile(path, []byte("live"), 0o640))

	aside := path + ".pre-restore.20250105_020000"
	require.NoError(t, eng.BackupCurrent(context.Background(), aside))

	data, err := os.ReadFile(aside)
	require.NoError(t, err)
	assert.Equal(t, []byte("live"), data)
}

func TestSQLiteReplaceTargetRemovesWALFiles(t *testing.T) {
	eng, path := newSQLiteFixture(t)
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o640))
	}

	require.NoError(t, eng.ReplaceTarget(context.Background()))

	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), "expected %s to be removed", p)
	}

	// Idempotent when nothing exists.
	assert.NoError(t, eng.ReplaceTarget(context.Background()))
}

func TestSQLiteIntegrityAndRowCount(t *testing.T) {
	eng, _ := newSQLiteFixture(t)

	db, err := eng.Open()
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.ExecContext(ctx, `CREATE TABLE log_entries (id INTEGER PRIMARY KEY, message TEXT, created_at TEXT)`)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = db.ExecContext(ctx, `INSERT INTO log_entries (message, created_at) VALUES ('m', datetime('now'))`)
		require.NoError(t, err)
	}

	require.NoError(t, eng.CheckIntegrity(ctx, db))

	count, err := eng.RowCount(ctx, db, "log_entries")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	_, err = eng.RowCount(ctx, db, "missing_table")
	require.Error(t, err)
	assert.Equal(t, opserrors.ErrorTypeDatabase, opserrors.TypeOf(err))
}

func TestCopyFileAtomic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	t.Run("missing source leaves no destination", func(t *testing.T) {
		err := copyFileAtomic(src, dst)
		require.Error(t, err)
		_, statErr := os.Stat(dst)
		assert.True(t, os.IsNotExist(statErr))
		_, statErr = os.Stat(dst + ".tmp")
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("copies content", func(t *testing.T) {
		require.NoError(t, os.WriteFile(src, []byte("payload"), 0o640))
		require.NoError(t, copyFileAtomic(src, dst))
		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), data)
	})
}
