package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpsErrorFormatting(t *testing.T) {
	plain := NewConfigurationError("engine not set", nil)
	assert.Equal(t, "CONFIGURATION_ERROR: engine not set", plain.Error())

	cause := errors.New("exit status 1")
	wrapped := NewExternalToolError("pg_dump failed", cause)
	assert.Equal(t, "EXTERNAL_TOOL_ERROR: pg_dump failed (caused by: exit status 1)", wrapped.Error())
	assert.Equal(t, cause, errors.Unwrap(wrapped))
}

func TestOpsErrorWrappingThroughFmt(t *testing.T) {
	inner := NewVerificationError("row count mismatch", nil)
	outer := fmt.Errorf("restore step VERIFY: %w", inner)

	var opsErr *OpsError
	require.True(t, errors.As(outer, &opsErr))
	assert.Equal(t, ErrorTypeVerification, opsErr.Type)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeNotFound, TypeOf(NewNotFoundError("gone", nil)))
	assert.Equal(t, ErrorTypeStorage, TypeOf(fmt.Errorf("wrapped: %w", NewStorageError("disk", nil))))
	assert.Equal(t, OpsErrorType(""), TypeOf(errors.New("plain")))
	assert.Equal(t, OpsErrorType(""), TypeOf(nil))
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, IsVerification(NewVerificationError("bad", nil)))
	assert.False(t, IsVerification(NewStorageError("disk", nil)))
	assert.True(t, IsConfiguration(NewConfigurationError("flag", nil)))
}

func TestWithContext(t *testing.T) {
	err := NewDatabaseError("query failed", nil).
		WithContext("table", "log_entries").
		WithContext("rows", 42)

	assert.Equal(t, "log_entries", err.Context["table"])
	assert.Equal(t, 42, err.Context["rows"])
}
