// --- File: pkg/registrar/registrar.go ---
// Package registrar validates Expo push tokens and coordinates interest
// registration over a registry.Repository.
package registrar

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

const (
	tokenPrefix = "ExponentPushToken["
	tokenSuffix = "]"
)

// IsValidToken reports whether token looks like an Expo push token.
// Only the prefix and suffix are checked; the body is opaque.
func IsValidToken(token string) bool {
	return strings.HasPrefix(token, tokenPrefix) && strings.HasSuffix(token, tokenSuffix)
}

// Registrar implements registry.Registrar.
type Registrar struct {
	repo   registry.Repository
	logger *slog.Logger
}

var _ registry.Registrar = (*Registrar)(nil)

func New(repo registry.Repository, logger *slog.Logger) *Registrar {
	return &Registrar{
		repo:   repo,
		logger: logger.With("component", "Registrar"),
	}
}

// RegisterInterest stores token under interest.
// It returns registry.ErrEmptyInterest for an empty interest and
// registry.ErrInvalidToken (wrapped) if the token is malformed.
func (r *Registrar) RegisterInterest(ctx context.Context, interest, token string) (bool, error) {
	if interest == "" {
		r.logger.Warn("Rejected registration", "reason", "empty interest")
		return false, registry.ErrEmptyInterest
	}
	if !IsValidToken(token) {
		r.logger.Warn("Rejected registration", "interest", interest, "reason", "invalid token")
		return false, fmt.Errorf("%w: %q", registry.ErrInvalidToken, token)
	}

	stored, err := r.repo.Store(ctx, interest, token)
	if err != nil {
		return false, fmt.Errorf("failed to store token for interest %q: %w", interest, err)
	}
	r.logger.Debug("Interest registered", "interest", interest, "stored", stored)
	return stored, nil
}

// RemoveInterest removes token from interest, or the whole interest when
// token is empty. No format check is made: an unknown token just reports false.
func (r *Registrar) RemoveInterest(ctx context.Context, interest, token string) (bool, error) {
	removed, err := r.repo.Forget(ctx, interest, token)
	if err != nil {
		return false, fmt.Errorf("failed to forget interest %q: %w", interest, err)
	}
	r.logger.Debug("Interest removal", "interest", interest, "all", token == "", "removed", removed)
	return removed, nil
}

// GetInterests returns every token of every listed interest, in the order
// given. Missing interests are skipped and nothing is deduplicated.
func (r *Registrar) GetInterests(ctx context.Context, interests []string) ([]string, error) {
	tokens := make([]string, 0, len(interests))

	for _, interest := range interests {
		value, found, err := r.repo.Retrieve(ctx, interest)
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve interest %q: %w", interest, err)
		}
		if !found {
			continue
		}
		tokens = append(tokens, value.List()...)
	}

	return tokens, nil
}
