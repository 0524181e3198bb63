package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceID(t *testing.T) {
	t.Run("should round-trip through the context", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "trace-1")
		assert.Equal(t, "trace-1", GetTraceID(ctx))
	})

	t.Run("should return empty when unset", func(t *testing.T) {
		assert.Empty(t, GetTraceID(context.Background()))
	})
}

func TestSessionID(t *testing.T) {
	ctx := WithSessionID(context.Background(), "session-1")
	assert.Equal(t, "session-1", GetSessionID(ctx))
	assert.Empty(t, GetSessionID(context.Background()))
}

func TestScope(t *testing.T) {
	ctx := WithScope(context.Background(), "u1")
	assert.Equal(t, "u1", GetScope(ctx))
	assert.Empty(t, GetScope(context.Background()))
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())
	first := GetTraceID(ctx)
	assert.NotEmpty(t, first)

	second := GetTraceID(NewRequestContext(context.Background()))
	assert.NotEqual(t, first, second)
}
