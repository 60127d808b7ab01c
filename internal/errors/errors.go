package errors

import (
	"errors"
	"fmt"
)

// OpsErrorType categorizes operational errors. The three classes map
// directly onto how an operator must react: configuration errors mean
// nothing ran, external-tool errors mean a wrapped binary failed, and
// verification errors mean a destructive step already completed.
type OpsErrorType string

const (
	// ErrorTypeConfiguration covers missing files, unknown commands and
	// unparseable flags. No side effects were attempted.
	ErrorTypeConfiguration OpsErrorType = "CONFIGURATION_ERROR"
	// ErrorTypeExternalTool covers failures of wrapped binaries
	// (pg_dump, pg_restore, psql, sqlite3). The wrapping step fails with
	// the tool's error; partial output must not be treated as usable.
	ErrorTypeExternalTool OpsErrorType = "EXTERNAL_TOOL_ERROR"
	// ErrorTypeVerification covers integrity or row-count checks that
	// fail after a destructive step already ran. The most severe class:
	// there is no automatic rollback.
	ErrorTypeVerification OpsErrorType = "VERIFICATION_ERROR"
	// ErrorTypeStorage covers artifact read/write/delete failures.
	ErrorTypeStorage OpsErrorType = "STORAGE_ERROR"
	// ErrorTypeNotFound covers missing artifacts or directories.
	ErrorTypeNotFound OpsErrorType = "NOT_FOUND_ERROR"
	// ErrorTypeCompression covers compress/decompress failures.
	ErrorTypeCompression OpsErrorType = "COMPRESSION_ERROR"
	// ErrorTypeEncryption covers encrypt/decrypt and key failures.
	ErrorTypeEncryption OpsErrorType = "ENCRYPTION_ERROR"
	// ErrorTypeDatabase covers direct database query failures.
	ErrorTypeDatabase OpsErrorType = "DATABASE_ERROR"
)

// OpsError is an operational error with its class and optional context.
type OpsError struct {
	Type    OpsErrorType           `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *OpsError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *OpsError) Unwrap() error {
	return e.Cause
}

// WithContext adds context information to the error
func (e *OpsError) WithContext(key string, value interface{}) *OpsError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates a new OpsError
func New(errorType OpsErrorType, message string, cause error) *OpsError {
	return &OpsError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

func NewConfigurationError(message string, cause error) *OpsError {
	return New(ErrorTypeConfiguration, message, cause)
}

func NewExternalToolError(message string, cause error) *OpsError {
	return New(ErrorTypeExternalTool, message, cause)
}

func NewVerificationError(message string, cause error) *OpsError {
	return New(ErrorTypeVerification, message, cause)
}

func NewStorageError(message string, cause error) *OpsError {
	return New(ErrorTypeStorage, message, cause)
}

func NewNotFoundError(message string, cause error) *OpsError {
	return New(ErrorTypeNotFound, message, cause)
}

func NewCompressionError(message string, cause error) *OpsError {
	return New(ErrorTypeCompression, message, cause)
}

func NewEncryptionError(message string, cause error) *OpsError {
	return New(ErrorTypeEncryption, message, cause)
}

func NewDatabaseError(message string, cause error) *OpsError {
	return New(ErrorTypeDatabase, message, cause)
}

// TypeOf returns the OpsErrorType of err, or empty string when err is
// not an OpsError.
func TypeOf(err error) OpsErrorType {
	var opsErr *OpsError
	if errors.As(err, &opsErr) {
		return opsErr.Type
	}
	return ""
}

// IsVerification reports whether err is a verification failure, the
// class that must be surfaced loudest.
func IsVerification(err error) bool {
	return TypeOf(err) == ErrorTypeVerification
}

// IsConfiguration reports whether err is a configuration error.
func IsConfiguration(err error) bool {
	return TypeOf(err) == ErrorTypeConfiguration
}
