package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEngineKind(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    EngineKind
		expectError bool
	}{
		{name: "sqlite", input: "sqlite", expected: EngineSQLite},
		{name: "postgres", input: "postgres", expected: EnginePostgres},
		{name: "mixed case", input: "SQLite", expected: EngineSQLite},
		{name: "whitespace", input: "  postgres ", expected: EnginePostgres},
		{name: "unknown", input: "mysql", expectError: true},
		{name: "empty", input: "", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := ParseEngineKind(tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, kind)
		})
	}
}

func TestConfigSetDefaults(t *testing.T) {
	t.Run("empty config defaults to sqlite", func(t *testing.T) {
		cfg := &Config{}
		cfg.SetDefaults()

		assert.Equal(t, EngineSQLite, cfg.Engine)
		assert.Equal(t, "./logs.db", cfg.SQLite.Path)
		assert.Equal(t, "./backups", cfg.Backup.Dir)
		assert.Equal(t, "gzip", cfg.Backup.Compression)
		assert.Equal(t, 7, cfg.Backup.Retention.DailyDays)
		assert.Equal(t, 28, cfg.Backup.Retention.WeeklyDays)
		assert.Equal(t, 180, cfg.Backup.Retention.MonthlyDays)
		assert.Equal(t, "/var/log/ci", cfg.Logs.Root)
		assert.Equal(t, 30, cfg.Logs.RetentionDays)
		assert.Equal(t, "log_entries", cfg.Table)
	})

	t.Run("postgres DSN selects postgres engine", func(t *testing.T) {
		cfg := &Config{Postgres: PostgresConfig{DSN: "postgres://localhost/logs"}}
		cfg.SetDefaults()
		assert.Equal(t, EnginePostgres, cfg.Engine)
	})

	t.Run("explicit engine wins over DSN inference", func(t *testing.T) {
		cfg := &Config{
			Engine:   EngineSQLite,
			Postgres: PostgresConfig{DSN: "postgres://localhost/logs"},
		}
		cfg.SetDefaults()
		assert.Equal(t, EngineSQLite, cfg.Engine)
	})
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.SetDefaults()
		return cfg
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:        "unknown engine",
			mutate:      func(c *Config) { c.Engine = "oracle" },
			expectError: "unknown engine",
		},
		{
			name: "postgres without DSN",
			mutate: func(c *Config) {
				c.Engine = EnginePostgres
			},
			expectError: "postgres.dsn is required",
		},
		{
			name:        "invalid compression",
			mutate:      func(c *Config) { c.Backup.Compression = "bzip2" },
			expectError: "invalid backup.compression",
		},
		{
			name:        "zero retention days",
			mutate:      func(c *Config) { c.Backup.Retention.DailyDays = -3 },
			expectError: "must be at least 1",
		},
		{
			name: "offsite s3 without bucket",
			mutate: func(c *Config) {
				c.Backup.Offsite.S3 = &S3Config{Region: "eu-central-1"}
			},
			expectError: "offsite.s3.bucket is required",
		},
		{
			name: "verbose and quiet together",
			mutate: func(c *Config) {
				c.Verbose = true
				c.Quiet = true
			},
			expectError: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestRetentionWindow(t *testing.T) {
	rc := RetentionConfig{DailyDays: 7, WeeklyDays: 28, MonthlyDays: 180}

	window, err := rc.RetentionWindow("daily")
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, window)

	window, err = rc.RetentionWindow("monthly")
	require.NoError(t, err)
	assert.Equal(t, 180*24*time.Hour, window)

	_, err = rc.RetentionWindow("hourly")
	assert.Error(t, err)
}
