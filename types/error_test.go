package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	t.Parallel()
	err := NewError(ErrNotFound, "agent missing")
	assert.Equal(t, "[NOT_FOUND] agent missing", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")
	err := WrapError(ErrStoreUnavailable, "redis ping failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}
