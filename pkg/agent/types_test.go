package agent

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryableError(t *testing.T) {
	t.Run("should retry transient failures", func(t *testing.T) {
		for _, msg := range []string{
			"request timeout",
			"context deadline exceeded",
			"connection refused",
			"connection reset by peer",
			"unexpected EOF",
			"429 Too Many Requests",
			"rate limit exceeded",
			"502 Bad Gateway",
			"server overloaded",
		} {
			assert.True(t, IsRetryableError(errors.New(msg)), msg)
		}
	})

	t.Run("should not retry auth failures", func(t *testing.T) {
		for _, msg := range []string{
			"401 Unauthorized",
			"403 Forbidden",
			"invalid api key provided",
			"authentication failed",
		} {
			assert.False(t, IsRetryableError(errors.New(msg)), msg)
		}
	})

	t.Run("should not retry other errors", func(t *testing.T) {
		assert.False(t, IsRetryableError(errors.New("invalid request body")))
		assert.False(t, IsRetryableError(nil))
	})
}

func TestIsAuthError(t *testing.T) {
	assert.True(t, IsAuthError(errors.New("401 Unauthorized")))
	assert.True(t, IsAuthError(errors.New("invalid api key")))
	assert.False(t, IsAuthError(errors.New("connection refused")))
	assert.False(t, IsAuthError(nil))
}

func TestRunConfigDefaults(t *testing.T) {
	t.Run("should fill zero values", func(t *testing.T) {
		cfg := RunConfig{}.withDefaults()
		assert.Equal(t, 8, cfg.MaxRounds)
		assert.Equal(t, 60*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 3, cfg.RetryAttempts)
		assert.Equal(t, time.Second, cfg.RetryBackoff)
	})

	t.Run("should keep explicit values", func(t *testing.T) {
		cfg := RunConfig{
			MaxRounds:      2,
			RequestTimeout: 5 * time.Second,
			RetryAttempts:  1,
			RetryBackoff:   10 * time.Millisecond,
		}.withDefaults()
		assert.Equal(t, 2, cfg.MaxRounds)
		assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
		assert.Equal(t, 1, cfg.RetryAttempts)
		assert.Equal(t, 10*time.Millisecond, cfg.RetryBackoff)
	})
}
