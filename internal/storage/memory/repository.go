// Package memory is a process-local registry.Repository, used for local
// development and as a test double.
package memory

import (
	"context"
	"sync"

	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

type Repository struct {
	mu        sync.RWMutex
	interests map[string]registry.Tokens
}

var _ registry.Repository = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{interests: make(map[string]registry.Tokens)}
}

// Seed replaces the value of interest, bypassing the merge rules.
// Used to load legacy Single values.
func (r *Repository) Seed(interest string, value registry.Tokens) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interests[interest] = value
}

func (r *Repository) Store(_ context.Context, interest, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interests[interest] = r.interests[interest].With(token)
	return true, nil
}

func (r *Repository) Retrieve(_ context.Context, interest string) (registry.Tokens, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, found := r.interests[interest]
	return value, found, nil
}

func (r *Repository) Forget(_ context.Context, interest, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, found := r.interests[interest]
	next, change, forgotten := registry.PlanForget(current, found, token)
	switch change {
	case registry.Replace:
		r.interests[interest] = next
	case registry.Delete:
		delete(r.interests, interest)
	}
	return forgotten, nil
}
