//go:build integration

package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-interest-registry/internal/storage/cache"
	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

func TestRedisClient(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client, err := cache.NewRedisClient(addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	key := "interest:tokens:test-" + uuid.NewString()

	t.Run("Absent key is a miss", func(t *testing.T) {
		var value registry.Tokens
		err := client.Get(ctx, key, &value)
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	})

	t.Run("Set then Get round-trips the tokens", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, key, registry.Many("ExponentPushToken[A]"), time.Minute))

		var value registry.Tokens
		require.NoError(t, client.Get(ctx, key, &value))
		assert.Equal(t, []string{"ExponentPushToken[A]"}, value.List())
	})

	t.Run("Del turns the key back into a miss", func(t *testing.T) {
		require.NoError(t, client.Del(ctx, key))

		var value registry.Tokens
		assert.ErrorIs(t, client.Get(ctx, key, &value), cache.ErrCacheMiss)
	})
}
