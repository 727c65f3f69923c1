package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMissingFieldError_MessageAndSentinel(t *testing.T) {
	err := fmt.Errorf("validate: %w", &MissingFieldError{Field: "database"})

	assert.Equal(t, "validate: Database name is required", err.Error())
	assert.True(t, errors.Is(err, ErrValidation))

	var mf *MissingFieldError
	assert.True(t, errors.As(err, &mf))
	assert.Equal(t, "database", mf.Field)
}

func TestMissingFieldError_UnknownFieldUsesRawName(t *testing.T) {
	err := &MissingFieldError{Field: "schema"}
	assert.Equal(t, "schema is required", err.Error())
}

func TestConnectionError_IsAndUnwrap(t *testing.T) {
	cause := context.DeadlineExceeded
	err := &ConnectionError{Status: 0, Detail: "Failed to connect to database", Err: cause}

	assert.True(t, errors.Is(err, ErrConnection))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, ErrFetch))
	assert.Equal(t, "Failed to connect to database", err.Error())
}

func TestFetchError_Messages(t *testing.T) {
	withStatus := &FetchError{Status: 502, Detail: "Failed to fetch data preview"}
	assert.Equal(t, "Failed to fetch data preview (status 502)", withStatus.Error())

	onWire := &FetchError{Detail: "Failed to load injection history", Err: errors.New("dial tcp: refused")}
	assert.Equal(t, "Failed to load injection history: dial tcp: refused", onWire.Error())
	assert.True(t, errors.Is(onWire, ErrFetch))
}

func TestValidationError_Is(t *testing.T) {
	err := NewValidationError("unsupported engine type %q", "oracle")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, `unsupported engine type "oracle"`, err.Error())
}
