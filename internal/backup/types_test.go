package backup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logdb-backup/internal/config"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		input       string
		expected    Tier
		expectError bool
	}{
		{input: "daily", expected: TierDaily},
		{input: "weekly", expected: TierWeekly},
		{input: "MONTHLY", expected: TierMonthly},
		{input: "hourly", expectError: true},
		{input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tier, err := ParseTier(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tier)
		})
	}
}

func TestArtifactName(t *testing.T) {
	ts := time.Date(2025, 1, 5, 2, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		kind        config.EngineKind
		tier        Tier
		compression string
		encrypted   bool
		expected    string
	}{
		{
			name: "sqlite gzip", kind: config.EngineSQLite, tier: TierDaily,
			compression: "gzip",
			expected:    "sqlite_daily_20250105_020000.db.gz",
		},
		{
			name: "postgres zstd", kind: config.EnginePostgres, tier: TierWeekly,
			compression: "zstd",
			expected:    "postgres_weekly_20250105_020000.dump.zst",
		},
		{
			name: "uncompressed", kind: config.EngineSQLite, tier: TierMonthly,
			compression: "none",
			expected:    "sqlite_monthly_20250105_020000.db",
		},
		{
			name: "encrypted lz4", kind: config.EnginePostgres, tier: TierDaily,
			compression: "lz4", encrypted: true,
			expected: "postgres_daily_20250105_020000.dump.lz4.enc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := ArtifactName(tt.kind, tt.tier, ts, tt.compression, tt.encrypted)
			assert.Equal(t, tt.expected, name)

			// Parsing must recover what was encoded.
			parsed, err := ParseArtifactName(name)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, parsed.Kind)
			assert.Equal(t, tt.tier, parsed.Tier)
			assert.Equal(t, ts, parsed.CreatedAt)
			assert.Equal(t, tt.compression, parsed.Compression)
			assert.Equal(t, tt.encrypted, parsed.Encrypted)
		})
	}
}

func TestParseArtifactNameRejectsForeignFiles(t *testing.T) {
	invalid := []string{
		"notes.txt",
		"daily_20250105_020000.db.gz",           // kind dropped
		"mysql_daily_20250105_020000.db.gz",     // unsupported kind
		"sqlite_hourly_20250105_020000.db.gz",   // unsupported tier
		"sqlite_daily_2025!105_020000.db.gz",    // broken timestamp
		"sqlite_daily_20250105_020000.db.gz.bak",
		"sqlite_daily_20250105_020000.db.gz" + ManifestSuffix,
	}

	for _, name := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := ParseArtifactName(name)
			assert.Error(t, err)
		})
	}
}

func TestParseArtifactNameUsesBase(t *testing.T) {
	parsed, err := ParseArtifactName("/backups/daily/sqlite_daily_20250105_020000.db.gz")
	require.NoError(t, err)
	assert.Equal(t, config.EngineSQLite, parsed.Kind)
	assert.Equal(t, TierDaily, parsed.Tier)
}
