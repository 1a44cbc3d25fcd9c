package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-interest-registry/internal/storage/memory"
	"github.com/tinywideclouds/go-interest-registry/internal/storage/storagetest"
	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

func TestMemoryRepository_Contract(t *testing.T) {
	storagetest.RunRepositoryContract(t, func(t *testing.T) registry.Repository {
		return memory.NewRepository()
	})
}

func TestMemoryRepository_SeededSingle(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	repo.Seed("news", registry.Single("C"))

	_, err := repo.Store(ctx, "news", "D")
	require.NoError(t, err)

	value, _, err := repo.Retrieve(ctx, "news")
	require.NoError(t, err)
	assert.True(t, value.IsMany())
	assert.Equal(t, []string{"C", "D"}, value.List())
}
