package memory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrashare/astra/internal/storage/memory"
)

func TestRepositoryNotifiedSet(t *testing.T) {
	ctx := context.Background()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	ids, err := repo.ListNotified(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, repo.AddNotified(ctx, "t1", 200))
	require.NoError(t, repo.AddNotified(ctx, "t2", 200))
	require.NoError(t, repo.AddNotified(ctx, "t1", 200))

	ids, err = repo.ListNotified(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, ids)
}

func TestRepositoryNotifiedSetEviction(t *testing.T) {
	ctx := context.Background()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.AddNotified(ctx, fmt.Sprintf("t%d", i), 3))
	}

	ids, err := repo.ListNotified(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t3", "t4"}, ids)
}

func TestRepositoryNotifyPermission(t *testing.T) {
	ctx := context.Background()

	repo, err := memory.NewRepository(memory.RepositoryConfig{})
	require.NoError(t, err)

	perm, err := repo.GetNotifyPermission(ctx)
	require.NoError(t, err)
	assert.Empty(t, perm)

	require.NoError(t, repo.SetNotifyPermission(ctx, "granted"))

	perm, err = repo.GetNotifyPermission(ctx)
	require.NoError(t, err)
	assert.Equal(t, "granted", perm)
}
