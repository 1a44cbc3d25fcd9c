package registry

import (
	"context"
	"sync"
)

// SerializedRepository wraps a Repository and runs one call at a time.
//
// Backends such as the file repository do a read-modify-write per call and
// lose updates when two writers overlap. Wrapping them closes that window
// within a single process; it does nothing for several processes sharing a
// file.
type SerializedRepository struct {
	mu   sync.Mutex
	next Repository
}

// Serialized returns repo guarded by a mutex.
func Serialized(repo Repository) *SerializedRepository {
	return &SerializedRepository{next: repo}
}

func (s *SerializedRepository) Store(ctx context.Context, interest, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Store(ctx, interest, token)
}

func (s *SerializedRepository) Retrieve(ctx context.Context, interest string) (Tokens, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Retrieve(ctx, interest)
}

func (s *SerializedRepository) Forget(ctx context.Context, interest, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Forget(ctx, interest, token)
}
