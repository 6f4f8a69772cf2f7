package remote

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	base := errors.New("boom")

	assert.True(t, IsRetryable(unavailable("upsert", base)))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", unavailable("upsert", base))))
	assert.False(t, IsRetryable(terminal("upsert", base)))
	assert.False(t, IsRetryable(base))
	assert.False(t, IsRetryable(nil))

	assert.True(t, IsTerminal(terminal("get", base)))
	assert.False(t, IsTerminal(unavailable("get", base)))
}

func TestError_MessageAndUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := terminal("get", base)

	assert.Equal(t, "remote get (terminal): boom", err.Error())
	assert.ErrorIs(t, err, base)
}
