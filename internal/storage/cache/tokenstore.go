// --- File: internal/storage/cache/tokenstore.go ---
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get fills dest, or returns ErrCacheMiss when the key is not cached.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedRepository is a Decorator that adds read-aside caching to any Repository.
// Only found values are cached; every write invalidates the interest, so a
// Retrieve straight after a Store never sees the old value.
type CachedRepository struct {
	realStore registry.Repository
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

var _ registry.Repository = (*CachedRepository)(nil)

func NewCachedRepository(realStore registry.Repository, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	return &CachedRepository{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedRepository"),
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedRepository) Retrieve(ctx context.Context, interest string) (registry.Tokens, bool, error) {
	key := s.cacheKey(interest)

	var cached registry.Tokens
	err := s.cache.Get(ctx, key, &cached)
	switch {
	case err == nil && !cached.IsZero():
		return cached, true, nil
	case err != nil && !errors.Is(err, ErrCacheMiss):
		// A Redis outage is a miss: the real store still answers.
		s.logger.Warn("Cache read failed, falling back to store", "interest", interest, "err", err)
	}

	value, found, err := s.realStore.Retrieve(ctx, interest)
	if err != nil || !found {
		return value, found, err
	}

	// Caching is an optimization, a Redis failure still serves from the store.
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.logger.Debug("Cache refill failed", "interest", interest, "err", err)
	}
	return value, true, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedRepository) Store(ctx context.Context, interest, token string) (bool, error) {
	stored, err := s.realStore.Store(ctx, interest, token)
	if err != nil {
		return false, err
	}
	return stored, s.invalidate(ctx, interest)
}

func (s *CachedRepository) Forget(ctx context.Context, interest, token string) (bool, error) {
	forgotten, err := s.realStore.Forget(ctx, interest, token)
	if err != nil {
		return false, err
	}
	return forgotten, s.invalidate(ctx, interest)
}

// --- Helpers ---

func (s *CachedRepository) invalidate(ctx context.Context, interest string) error {
	if err := s.cache.Del(ctx, s.cacheKey(interest)); err != nil {
		return fmt.Errorf("cache invalidation failed for interest %q: %w", interest, err)
	}
	return nil
}

func (s *CachedRepository) cacheKey(interest string) string {
	return fmt.Sprintf("interest:tokens:%s", interest)
}
