package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// EngineKind identifies which database engine the tool operates on.
// It is resolved exactly once while loading configuration and passed
// explicitly everywhere — no component re-derives it later.
type EngineKind string

const (
	EngineSQLite   EngineKind = "sqlite"
	EnginePostgres EngineKind = "postgres"
)

// ParseEngineKind validates a configured engine name.
func ParseEngineKind(s string) (EngineKind, error) {
	switch EngineKind(strings.ToLower(strings.TrimSpace(s))) {
	case EngineSQLite:
		return EngineSQLite, nil
	case EnginePostgres:
		return EnginePostgres, nil
	default:
		return "", fmt.Errorf("unknown engine %q, must be one of: sqlite, postgres", s)
	}
}

// Config is the fully resolved tool configuration.
type Config struct {
	Engine   EngineKind     `mapstructure:"engine" yaml:"engine"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
	Backup   BackupConfig   `mapstructure:"backup" yaml:"backup"`
	Service  ServiceConfig  `mapstructure:"service" yaml:"service"`
	Logs     LogsConfig     `mapstructure:"logs" yaml:"logs"`

	// Table is the primary table the logging pipeline writes to; row
	// counts and recency probes run against it.
	Table string `mapstructure:"table" yaml:"table"`

	Verbose bool   `mapstructure:"verbose" yaml:"verbose"`
	Quiet   bool   `mapstructure:"quiet" yaml:"quiet"`
	LogFile string `mapstructure:"log_file" yaml:"log_file"`
	NoColor bool   `mapstructure:"no_color" yaml:"no_color"`
}

// SQLiteConfig locates the embedded-file engine.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig describes the server-based engine connection.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn" yaml:"dsn"`
	Database string `mapstructure:"database" yaml:"database"`
}

// BackupConfig controls artifact creation and retention.
type BackupConfig struct {
	Dir         string           `mapstructure:"dir" yaml:"dir"`
	Compression string           `mapstructure:"compression" yaml:"compression"`
	Encryption  EncryptionConfig `mapstructure:"encryption" yaml:"encryption"`
	Retention   RetentionConfig  `mapstructure:"retention" yaml:"retention"`
	Offsite     OffsiteConfig    `mapstructure:"offsite" yaml:"offsite"`
}

// EncryptionConfig enables optional artifact encryption. The
// passphrase is never stored in the file; only the name of the
// environment variable holding it is.
type EncryptionConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	PassphraseEnv string `mapstructure:"passphrase_env" yaml:"passphrase_env"`
}

// RetentionConfig holds the per-tier age windows, in days. Retention
// is strictly age-based on artifact mtime; there is no count-based
// mode.
type RetentionConfig struct {
	DailyDays   int `mapstructure:"daily_days" yaml:"daily_days"`
	WeeklyDays  int `mapstructure:"weekly_days" yaml:"weekly_days"`
	MonthlyDays int `mapstructure:"monthly_days" yaml:"monthly_days"`
}

// OffsiteConfig configures an optional S3 copy of each artifact.
type OffsiteConfig struct {
	S3 *S3Config `mapstructure:"s3" yaml:"s3,omitempty"`
}

// S3Config for the offsite bucket.
type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
}

// ServiceConfig names the dependent container that writes to the
// database; it is stopped around restores, best effort.
type ServiceConfig struct {
	Container string `mapstructure:"container" yaml:"container"`
}

// LogsConfig configures the CI log directory cleaner.
type LogsConfig struct {
	Root          string `mapstructure:"root" yaml:"root"`
	RetentionDays int    `mapstructure:"retention_days" yaml:"retention_days"`
}

// SetDefaults fills zero values with documented defaults.
func (c *Config) SetDefaults() {
	if c.Engine == "" {
		// An explicit postgres DSN selects the server engine; otherwise
		// the embedded file engine. This inference happens here and
		// nowhere else.
		if c.Postgres.DSN != "" {
			c.Engine = EnginePostgres
		} else {
			c.Engine = EngineSQLite
		}
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = "./logs.db"
	}
	if c.Postgres.Database == "" {
		c.Postgres.Database = "logs"
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = "./backups"
	}
	if c.Backup.Compression == "" {
		c.Backup.Compression = "gzip"
	}
	if c.Backup.Encryption.PassphraseEnv == "" {
		c.Backup.Encryption.PassphraseEnv = "LOGDB_BACKUP_PASSPHRASE"
	}
	if c.Backup.Retention.DailyDays == 0 {
		c.Backup.Retention.DailyDays = 7
	}
	if c.Backup.Retention.WeeklyDays == 0 {
		c.Backup.Retention.WeeklyDays = 28
	}
	if c.Backup.Retention.MonthlyDays == 0 {
		c.Backup.Retention.MonthlyDays = 180
	}
	if c.Logs.Root == "" {
		c.Logs.Root = "/var/log/ci"
	}
	if c.Logs.RetentionDays == 0 {
		c.Logs.RetentionDays = 30
	}
	if c.Table == "" {
		c.Table = "log_entries"
	}
}

// Validate checks the configuration for consistency. A validation
// failure is a configuration error: the process must exit before any
// side effect is attempted.
func (c *Config) Validate() error {
	kind, err := ParseEngineKind(string(c.Engine))
	if err != nil {
		return err
	}
	c.Engine = kind

	switch c.Engine {
	case EngineSQLite:
		if c.SQLite.Path == "" {
			return fmt.Errorf("sqlite.path is required for the sqlite engine")
		}
	case EnginePostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("postgres.dsn is required for the postgres engine")
		}
		if c.Postgres.Database == "" {
			return fmt.Errorf("postgres.database is required for the postgres engine")
		}
	}

	switch c.Backup.Compression {
	case "gzip", "zstd", "lz4", "none":
	default:
		return fmt.Errorf("invalid backup.compression %q, must be one of: gzip, zstd, lz4, none", c.Backup.Compression)
	}

	if c.Backup.Dir == "" {
		return fmt.Errorf("backup.dir must not be empty")
	}
	if !filepath.IsAbs(c.Backup.Dir) && strings.HasPrefix(c.Backup.Dir, "~") {
		return fmt.Errorf("backup.dir must not use ~ expansion, got %q", c.Backup.Dir)
	}

	for name, days := range map[string]int{
		"retention.daily_days":   c.Backup.Retention.DailyDays,
		"retention.weekly_days":  c.Backup.Retention.WeeklyDays,
		"retention.monthly_days": c.Backup.Retention.MonthlyDays,
		"logs.retention_days":    c.Logs.RetentionDays,
	} {
		if days < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, days)
		}
	}

	if s3 := c.Backup.Offsite.S3; s3 != nil {
		if s3.Bucket == "" {
			return fmt.Errorf("offsite.s3.bucket is required when offsite S3 is configured")
		}
		if s3.Region == "" {
			return fmt.Errorf("offsite.s3.region is required when offsite S3 is configured")
		}
	}

	if c.Verbose && c.Quiet {
		return fmt.Errorf("verbose and quiet are mutually exclusive")
	}

	return nil
}

// RetentionWindow returns the age window for a tier as a duration.
func (rc RetentionConfig) RetentionWindow(tier string) (time.Duration, error) {
	var days int
	switch tier {
	case "daily":
		days = rc.DailyDays
	case "weekly":
		days = rc.WeeklyDays
	case "monthly":
		days = rc.MonthlyDays
	default:
		return 0, fmt.Errorf("unknown policy tier %q", tier)
	}
	return time.Duration(days) * 24 * time.Hour, nil
}
