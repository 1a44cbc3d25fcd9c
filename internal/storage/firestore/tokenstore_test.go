// --- File: internal/storage/firestore/tokenstore_test.go ---
//go:build integration

package firestore_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/tinywideclouds/go-interest-registry/internal/storage/firestore"
	"github.com/tinywideclouds/go-interest-registry/internal/storage/storagetest"
	"github.com/tinywideclouds/go-interest-registry/pkg/registry"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupSuite(t *testing.T) (context.Context, *fs.FirestoreStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	projectID := "test-interest-registry"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ctx, fs.NewFirestoreStore(client, newTestLogger())
}

// scoped keeps each subtest on its own interests in the shared emulator.
type scoped struct {
	registry.Repository
	prefix string
}

func (s scoped) Store(ctx context.Context, interest, token string) (bool, error) {
	return s.Repository.Store(ctx, s.prefix+interest, token)
}

func (s scoped) Retrieve(ctx context.Context, interest string) (registry.Tokens, bool, error) {
	return s.Repository.Retrieve(ctx, s.prefix+interest)
}

func (s scoped) Forget(ctx context.Context, interest, token string) (bool, error) {
	return s.Repository.Forget(ctx, s.prefix+interest, token)
}

func TestFirestoreStore_Integration(t *testing.T) {
	ctx, store := setupSuite(t)

	storagetest.RunRepositoryContract(t, func(t *testing.T) registry.Repository {
		return scoped{Repository: store, prefix: uuid.NewString() + "/"}
	})

	t.Run("Interests containing slashes are stored", func(t *testing.T) {
		interest := "topics/sports/" + uuid.NewString()
		ok, err := store.Store(ctx, interest, "ExponentPushToken[A]")
		require.NoError(t, err)
		assert.True(t, ok)

		value, found, err := store.Retrieve(ctx, interest)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []string{"ExponentPushToken[A]"}, value.List())
	})
}
