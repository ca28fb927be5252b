package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryLimiterAllowsUpToLimit(t *testing.T) {
	limiter := NewMemoryLimiter()
	user := primitive.NewObjectID()

	for i := 0; i < 5; i++ {
		ok, err := limiter.Allow(context.Background(), user, "chat", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "call %d is within the limit", i+1)
	}

	ok, err := limiter.Allow(context.Background(), user, "chat", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "the sixth call is denied")
}

func TestMemoryLimiterSeparatesOperations(t *testing.T) {
	limiter := NewMemoryLimiter()
	user := primitive.NewObjectID()

	ok, err := limiter.Allow(context.Background(), user, "chat", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Allow(context.Background(), user, "chat", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.Allow(context.Background(), user, "tryon", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "operations count independently")
}

func TestMemoryLimiterSeparatesUsers(t *testing.T) {
	limiter := NewMemoryLimiter()

	ok, err := limiter.Allow(context.Background(), primitive.NewObjectID(), "chat", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Allow(context.Background(), primitive.NewObjectID(), "chat", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "a second user has their own counter")
}
