// Package storagetest holds the behaviour every registry.Repository must show,
// so each backend runs the same checks against its own storage.
package storagetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

// Factory returns a fresh, empty repository for one subtest.
type Factory func(t *testing.T) registry.Repository

// RunRepositoryContract runs the shared repository checks.
func RunRepositoryContract(t *testing.T, newRepo Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("Retrieve on empty store is absent", func(t *testing.T) {
		repo := newRepo(t)
		_, found, err := repo.Retrieve(ctx, "nothing")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Fresh store accepts first token", func(t *testing.T) {
		repo := newRepo(t)
		ok, err := repo.Store(ctx, "x", "T1")
		require.NoError(t, err)
		assert.True(t, ok)

		value, found, err := repo.Retrieve(ctx, "x")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []string{"T1"}, value.List())
	})

	t.Run("Store is idempotent", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 2; i++ {
			ok, err := repo.Store(ctx, "sports", "ExponentPushToken[A]")
			require.NoError(t, err)
			require.True(t, ok)
		}

		value, _, err := repo.Retrieve(ctx, "sports")
		require.NoError(t, err)
		assert.Equal(t, []string{"ExponentPushToken[A]"}, value.List())
	})

	t.Run("Store keeps insertion order", func(t *testing.T) {
		repo := newRepo(t)
		mustStore(t, repo, "k", "v1", "v2")

		value, found, err := repo.Retrieve(ctx, "k")
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, value.IsMany())
		assert.Equal(t, []string{"v1", "v2"}, value.List())
	})

	t.Run("Interests are independent", func(t *testing.T) {
		repo := newRepo(t)
		mustStore(t, repo, "a", "v1")
		mustStore(t, repo, "b", "v2")

		value, _, err := repo.Retrieve(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"v1"}, value.List())
	})

	t.Run("Forget one of many", func(t *testing.T) {
		repo := newRepo(t)
		mustStore(t, repo, "k", "v1", "v2", "v3")

		removed, err := repo.Forget(ctx, "k", "v2")
		require.NoError(t, err)
		assert.True(t, removed)

		value, found, err := repo.Retrieve(ctx, "k")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []string{"v1", "v3"}, value.List())
	})

	t.Run("Forget last token removes the interest", func(t *testing.T) {
		repo := newRepo(t)
		mustStore(t, repo, "k", "v1")

		removed, err := repo.Forget(ctx, "k", "v1")
		require.NoError(t, err)
		assert.True(t, removed)

		_, found, err := repo.Retrieve(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Forget without token removes everything", func(t *testing.T) {
		repo := newRepo(t)
		mustStore(t, repo, "k", "v1", "v2")

		removed, err := repo.Forget(ctx, "k", "")
		require.NoError(t, err)
		assert.True(t, removed)

		_, found, err := repo.Retrieve(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Forget unknown token is a no-op", func(t *testing.T) {
		repo := newRepo(t)
		mustStore(t, repo, "k", "v1")

		removed, err := repo.Forget(ctx, "k", "nope")
		require.NoError(t, err)
		assert.False(t, removed)

		value, _, err := repo.Retrieve(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []string{"v1"}, value.List())
	})

	t.Run("Forget missing interest is vacuously true", func(t *testing.T) {
		repo := newRepo(t)
		removed, err := repo.Forget(ctx, "ghost", "v1")
		require.NoError(t, err)
		assert.True(t, removed)
	})
}

func mustStore(t *testing.T, repo registry.Repository, interest string, tokens ...string) {
	t.Helper()
	for _, token := range tokens {
		ok, err := repo.Store(context.Background(), interest, token)
		require.NoError(t, err)
		require.True(t, ok)
	}
}
