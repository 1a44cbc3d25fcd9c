//go:build integration

package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-interest-registry/internal/storage/postgres"
	"github.com/tinywideclouds/go-interest-registry/internal/storage/storagetest"
	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

// prefixed keeps each subtest on its own interests in a shared table.
type prefixed struct {
	registry.Repository
	prefix string
}

func (p prefixed) Store(ctx context.Context, interest, token string) (bool, error) {
	return p.Repository.Store(ctx, p.prefix+interest, token)
}

func (p prefixed) Retrieve(ctx context.Context, interest string) (registry.Tokens, bool, error) {
	return p.Repository.Retrieve(ctx, p.prefix+interest)
}

func (p prefixed) Forget(ctx context.Context, interest, token string) (bool, error) {
	return p.Repository.Forget(ctx, p.prefix+interest, token)
}

func TestPostgresRepository_Contract(t *testing.T) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	repo, err := postgres.Connect(ctx, databaseURL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(repo.Close)

	storagetest.RunRepositoryContract(t, func(t *testing.T) registry.Repository {
		return prefixed{Repository: repo, prefix: uuid.NewString() + ":"}
	})
}
