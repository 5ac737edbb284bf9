package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys_RoundTrip(t *testing.T) {
	ctx := context.Background()

	_, ok := RunID(ctx)
	assert.False(t, ok)

	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithSessionID(ctx, "session-1")
	ctx = WithActorKey(ctx, "alice")

	v, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "trace-1", v)

	v, ok = RunID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "run-1", v)

	v, ok = SessionID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "session-1", v)

	v, ok = ActorKey(ctx)
	assert.True(t, ok)
	assert.Equal(t, "alice", v)
}

func TestContextKeys_EmptyIsAbsent(t *testing.T) {
	ctx := WithSessionID(context.Background(), "")
	_, ok := SessionID(ctx)
	assert.False(t, ok)
}
