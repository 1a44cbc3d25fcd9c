// --- File: internal/storage/cache/tokenstore_test.go ---
package cache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-interest-registry/internal/storage/cache"
	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) error {
	args := m.Called(ctx, key, dest)
	if fill, ok := args.Get(1).(registry.Tokens); ok && args.Error(0) == nil {
		*(dest.(*registry.Tokens)) = fill
	}
	return args.Error(0)
}
func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}
func (m *MockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockRealStore struct {
	mock.Mock
}

func (m *MockRealStore) Store(ctx context.Context, interest, token string) (bool, error) {
	args := m.Called(ctx, interest, token)
	return args.Bool(0), args.Error(1)
}
func (m *MockRealStore) Retrieve(ctx context.Context, interest string) (registry.Tokens, bool, error) {
	args := m.Called(ctx, interest)
	return args.Get(0).(registry.Tokens), args.Bool(1), args.Error(2)
}
func (m *MockRealStore) Forget(ctx context.Context, interest, token string) (bool, error) {
	args := m.Called(ctx, interest, token)
	return args.Bool(0), args.Error(1)
}

func TestCachedRepository_ImmediateInvalidation(t *testing.T) {
	ctx := context.Background()
	mockCache := new(MockCache)
	mockDB := new(MockRealStore)

	// Decorate the DB
	store := cache.NewCachedRepository(mockDB, mockCache, 1*time.Hour, newTestLogger())
	cacheKey := "interest:tokens:sports"

	t.Run("Forget invalidates cache immediately", func(t *testing.T) {
		mockDB.On("Forget", ctx, "sports", "ExponentPushToken[old]").Return(true, nil)
		mockCache.On("Del", ctx, cacheKey).Return(nil).Once()

		removed, err := store.Forget(ctx, "sports", "ExponentPushToken[old]")

		require.NoError(t, err)
		assert.True(t, removed)
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Subsequent Retrieve hits DB (Cache Miss)", func(t *testing.T) {
		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(cache.ErrCacheMiss, nil).Once()

		fresh := registry.Many("ExponentPushToken[new]")
		mockDB.On("Retrieve", ctx, "sports").Return(fresh, true, nil).Once()
		mockCache.On("Set", ctx, cacheKey, fresh, time.Hour).Return(nil).Once()

		value, found, err := store.Retrieve(ctx, "sports")

		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []string{"ExponentPushToken[new]"}, value.List())
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Store invalidates cache", func(t *testing.T) {
		mockDB.On("Store", ctx, "sports", "ExponentPushToken[B]").Return(true, nil)
		mockCache.On("Del", ctx, cacheKey).Return(nil).Once()

		ok, err := store.Store(ctx, "sports", "ExponentPushToken[B]")

		require.NoError(t, err)
		assert.True(t, ok)
		mockCache.AssertExpectations(t)
	})
}

func TestCachedRepository_ReadPath(t *testing.T) {
	ctx := context.Background()

	t.Run("Cache hit skips the DB", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedRepository(mockDB, mockCache, time.Minute, newTestLogger())

		mockCache.On("Get", ctx, "interest:tokens:news", mock.Anything).Return(nil, registry.Single("C"))

		value, found, err := store.Retrieve(ctx, "news")

		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, value.IsSingle())
		mockDB.AssertNotCalled(t, "Retrieve", mock.Anything, mock.Anything)
	})

	t.Run("Absent interests are not cached", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedRepository(mockDB, mockCache, time.Minute, newTestLogger())

		mockCache.On("Get", ctx, "interest:tokens:missing", mock.Anything).Return(cache.ErrCacheMiss, nil)
		mockDB.On("Retrieve", ctx, "missing").Return(registry.Tokens{}, false, nil)

		_, found, err := store.Retrieve(ctx, "missing")

		require.NoError(t, err)
		assert.False(t, found)
		mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Redis failure on refill still serves the value", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedRepository(mockDB, mockCache, time.Minute, newTestLogger())

		mockCache.On("Get", ctx, "interest:tokens:k", mock.Anything).Return(cache.ErrCacheMiss, nil)
		mockDB.On("Retrieve", ctx, "k").Return(registry.Many("v1"), true, nil)
		mockCache.On("Set", ctx, "interest:tokens:k", mock.Anything, time.Minute).Return(assert.AnError)

		value, found, err := store.Retrieve(ctx, "k")

		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []string{"v1"}, value.List())
	})

	t.Run("Redis outage on read falls back to the DB", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRealStore)
		store := cache.NewCachedRepository(mockDB, mockCache, time.Minute, newTestLogger())

		mockCache.On("Get", ctx, "interest:tokens:down", mock.Anything).Return(assert.AnError, nil)
		mockDB.On("Retrieve", ctx, "down").Return(registry.Many("v1"), true, nil).Once()
		mockCache.On("Set", ctx, "interest:tokens:down", mock.Anything, time.Minute).Return(assert.AnError)

		value, found, err := store.Retrieve(ctx, "down")

		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []string{"v1"}, value.List())
		mockDB.AssertExpectations(t)
	})
}
