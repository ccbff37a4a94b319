package lkerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := New(UnsupportedPlatform, "no branch for alpine")
	assert.Equal(t, UnsupportedPlatform, KindOf(err))

	wrapped := fmt.Errorf("refresh failed: %w", err)
	assert.Equal(t, UnsupportedPlatform, KindOf(wrapped))

	assert.Equal(t, Other, KindOf(errors.New("plain")))
}

func TestErrorIsKindChecks(t *testing.T) {
	err := Wrap(ConnectionFailed, "dial failed", errors.New("i/o timeout"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, New(ConnectionFailed, "")))
	assert.False(t, errors.Is(err, New(NotFound, "")))
	assert.Contains(t, err.Error(), "dial failed")
	assert.Contains(t, err.Error(), "i/o timeout")
}
