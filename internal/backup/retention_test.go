package backup

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logdb-backup/internal/config"
	"logdb-backup/internal/logging"
)

func newTestEnforcer(t *testing.T, store *Store) *RetentionEnforcer {
	t.Helper()
	cfg := config.RetentionConfig{DailyDays: 7, WeeklyDays: 28, MonthlyDays: 180}
	enforcer := NewRetentionEnforcer(store, cfg, logging.NewDefaultLogger())
	return enforcer
}

func TestRetentionAgeWindow(t *testing.T) {
	store := NewStore(t.TempDir())
	enforcer := newTestEnforcer(t, store)

	reference := time.Date(2025, 1, 12, 2, 0, 0, 0, time.UTC)
	enforcer.now = func() time.Time { return reference }

	// Six days old with a seven-day window: kept.
	young := writeArtifact(t, store, TierDaily, "sqlite_daily_20250106_020000.db", 0)
	sixDays := reference.Add(-6 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(young, sixDays, sixDays))

	// Eight days old: removed.
	expired := writeArtifact(t, store, TierDaily, "sqlite_daily_20250104_020000.db", 0)
	eightDays := reference.Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(expired, eightDays, eightDays))

	result, err := enforcer.Enforce(TierDaily, "", false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 1, result.Kept)
	assert.Empty(t, result.Errors)

	_, err = os.Stat(young)
	assert.NoError(t, err)
	_, err = os.Stat(expired)
	assert.True(t, os.IsNotExist(err))
}

func TestRetentionExcludesCurrentArtifact(t *testing.T) {
	store := NewStore(t.TempDir())
	enforcer := newTestEnforcer(t, store)
	enforcer.now = func() time.Time { return time.Now() }

	// Ancient, but passed as the just-written artifact.
	current := writeArtifact(t, store, TierDaily, "sqlite_daily_20240101_020000.db", 365*24*time.Hour)

	result, err := enforcer.Enforce(TierDaily, current, false)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Deleted)
	assert.Equal(t, 1, result.Kept)
	_, err = os.Stat(current)
	assert.NoError(t, err)
}

func TestRetentionDryRun(t *testing.T) {
	store := NewStore(t.TempDir())
	enforcer := newTestEnforcer(t, store)

	expired := writeArtifact(t, store, TierWeekly, "postgres_weekly_20240101_030000.dump.gz", 60*24*time.Hour)

	result, err := enforcer.Enforce(TierWeekly, "", true)
	require.NoError(t, err)

	assert.True(t, result.DryRun)
	assert.Equal(t, 1, result.Deleted)
	require.Len(t, result.Removed, 1)
	assert.Equal(t, expired, result.Removed[0].Path)

	// Dry run never touches the filesystem.
	_, err = os.Stat(expired)
	assert.NoError(t, err)
}

func TestRetentionWindowPerTier(t *testing.T) {
	store := NewStore(t.TempDir())
	enforcer := newTestEnforcer(t, store)

	// 30 days old: expired for daily (7d) and weekly (28d), kept for
	// monthly (180d).
	writeArtifact(t, store, TierMonthly, "sqlite_monthly_20250101_020000.db", 30*24*time.Hour)

	result, err := enforcer.Enforce(TierMonthly, "", false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Deleted)
	assert.Equal(t, 1, result.Kept)
}

func TestRetentionUnknownTier(t *testing.T) {
	store := NewStore(t.TempDir())
	enforcer := newTestEnforcer(t, store)

	_, err := enforcer.Enforce(Tier("hourly"), "", false)
	assert.Error(t, err)
}
