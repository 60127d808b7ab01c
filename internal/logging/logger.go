package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows detailed operational information
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

// Logger provides structured logging for backup, restore, health and
// log-cleanup operations.
type Logger struct {
	logger *logrus.Logger
	level  LogLevel
}

// Config holds logger configuration
type Config struct {
	Level      LogLevel
	Output     io.Writer
	Format     string // "text" or "json"
	ShowCaller bool
	LogFile    string
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stderr)
	}

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	switch config.Level {
	case LogLevelQuiet:
		logger.SetLevel(logrus.ErrorLevel)
	case LogLevelNormal:
		logger.SetLevel(logrus.InfoLevel)
	case LogLevelVerbose:
		logger.SetLevel(logrus.DebugLevel)
	case LogLevelDebug:
		logger.SetLevel(logrus.TraceLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if config.ShowCaller {
		logger.SetReportCaller(true)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			CallerPrettyfier: func(f *runtime.Frame) (string, string) {
				filename := filepath.Base(f.File)
				return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename, f.Line)
			},
		})
	}

	if config.LogFile != "" {
		file, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.LogFile, err)
		}
		if config.Output == nil {
			logger.SetOutput(io.MultiWriter(os.Stderr, file))
		} else {
			logger.SetOutput(io.MultiWriter(config.Output, file))
		}
	}

	return &Logger{
		logger: logger,
		level:  config.Level,
	}, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	logger, _ := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: os.Stderr,
		Format: "text",
	})
	return logger
}

// WithFields returns a logger entry with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.logger.WithFields(fields)
}

// WithField returns a logger entry with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.logger.WithField(key, value)
}

// LogExternalCommand records an invocation of a wrapped binary such as
// pg_dump or sqlite3.
func (l *Logger) LogExternalCommand(name string, args []string, duration time.Duration, err error) {
	fields := logrus.Fields{
		"operation": "external_command",
		"command":   name,
		"args":      args,
		"duration":  duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("External command failed")
	} else {
		l.logger.WithFields(fields).Debug("External command completed")
	}
}

// LogArtifactWritten records a successfully written backup artifact.
func (l *Logger) LogArtifactWritten(path string, tier string, sizeBytes int64, duration time.Duration) {
	l.logger.WithFields(logrus.Fields{
		"operation": "backup",
		"artifact":  path,
		"tier":      tier,
		"size":      sizeBytes,
		"duration":  duration.String(),
	}).Info("Backup artifact written")
}

// LogRetentionResult records the outcome of a retention pass.
func (l *Logger) LogRetentionResult(tier string, deleted, kept int, dryRun bool) {
	l.logger.WithFields(logrus.Fields{
		"operation": "retention",
		"tier":      tier,
		"deleted":   deleted,
		"kept":      kept,
		"dry_run":   dryRun,
	}).Info("Retention policy applied")
}

// LogRestoreStep records a restore state machine transition.
func (l *Logger) LogRestoreStep(step string, err error) {
	fields := logrus.Fields{
		"operation": "restore",
		"step":      step,
	}
	if err != nil {
		fields["error"] = err.Error()
		l.logger.WithFields(fields).Error("Restore step failed")
	} else {
		l.logger.WithFields(fields).Info("Restore step completed")
	}
}

// Standard logging methods

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn(msg)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.logger.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error(msg)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug(msg)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Level returns the configured log level
func (l *Logger) Level() LogLevel {
	return l.level
}
