package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapStore(t *testing.T) {
	assert.NoError(t, WrapStore(nil))

	wrapped := WrapStore(errors.New("disk full"))
	assert.ErrorIs(t, wrapped, ErrStore)
	assert.Contains(t, wrapped.Error(), "disk full")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(WrapStore(errors.New("timeout"))))
	assert.True(t, IsRetryable(WrapChannel(errors.New("gateway down"))))
	assert.False(t, IsRetryable(ErrInvalidCode))
	assert.False(t, IsRetryable(nil))
}
