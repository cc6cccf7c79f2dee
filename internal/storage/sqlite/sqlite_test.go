package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/storage/sqlite"
)

func newRepo(t *testing.T) *sqlite.Repository {
	t.Helper()
	repo, err := sqlite.NewRepository(context.Background(), sqlite.RepositoryConfig{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
		Logger: log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestRepositoryNotifiedSet(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	ids, err := repo.ListNotified(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, repo.AddNotified(ctx, "t1", 200))
	require.NoError(t, repo.AddNotified(ctx, "t2", 200))
	// Recording the same id again is a no-op.
	require.NoError(t, repo.AddNotified(ctx, "t1", 200))

	ids, err = repo.ListNotified(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ids)
}

func TestRepositoryNotifiedSetEviction(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AddNotified(ctx, fmt.Sprintf("t%d", i), 3))
	}

	ids, err := repo.ListNotified(ctx)
	require.NoError(t, err)

	// Only the newest entries survive.
	assert.Equal(t, []string{"t2", "t3", "t4"}, ids)
}

func TestRepositoryNotifyPermission(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	perm, err := repo.GetNotifyPermission(ctx)
	require.NoError(t, err)
	assert.Empty(t, perm)

	require.NoError(t, repo.SetNotifyPermission(ctx, "granted"))

	perm, err = repo.GetNotifyPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, "granted", perm)

	// Updating overwrites the previous value.
	require.NoError(t, repo.SetNotifyPermission(ctx, "denied"))

	perm, err = repo.GetNotifyPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, "denied", perm)
}

func TestRepositoryPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: dbPath, Logger: log.Noop})
	require.NoError(t, err)
	require.NoError(t, repo.AddNotified(ctx, "t1", 200))
	require.NoError(t, repo.SetNotifyPermission(ctx, "granted"))
	require.NoError(t, repo.Close())

	reopened, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{DBPath: dbPath, Logger: log.Noop})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	ids, err := reopened.ListNotified(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, ids)

	perm, err := reopened.GetNotifyPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, "granted", perm)
}
