package history_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrashare/astra/internal/app/history"
	"github.com/astrashare/astra/internal/backend"
	"github.com/astrashare/astra/internal/backend/fake"
	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/poller"
	"github.com/astrashare/astra/internal/registry"
)

func newFixture(t *testing.T) (*fake.Client, *registry.Registry, *poller.Poller, *history.Service) {
	client, err := fake.NewClient(fake.ClientConfig{})
	require.NoError(t, err)

	reg, err := registry.NewRegistry(registry.RegistryConfig{})
	require.NoError(t, err)

	pol, err := poller.NewPoller(poller.PollerConfig{
		Backend:  client,
		Registry: reg,
		Interval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	svc, err := history.NewService(history.ServiceConfig{
		Backend:  client,
		Registry: reg,
		Poller:   pol,
	})
	require.NoError(t, err)

	return client, reg, pol, svc
}

func TestServiceLoad(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, reg, pol, svc := newFixture(t)
	client.SetTask("t1", model.TaskState{Status: model.TaskStatusCompleted})
	client.SetTask("t2", model.TaskState{Status: model.TaskStatusFailed, ErrorMessage: "boom"})

	// Stale local entry that the server no longer knows.
	require.NoError(reg.Upsert(context.TODO(), model.Task{ID: "stale", Status: model.TaskStatusRunning}))

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()

	tasks, err := svc.Load(ctx, backend.HistoryOptions{})
	require.NoError(err)
	assert.Len(tasks, 2)

	_, err = reg.Get(context.TODO(), "stale")
	assert.ErrorIs(err, model.ErrNotFound)

	// Everything loaded is terminal, so no polling starts.
	assert.False(pol.Active())
}

func TestServiceLoadStartsPollingForPendingTasks(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, reg, pol, svc := newFixture(t)
	client.SetTask("t1", model.TaskState{Status: model.TaskStatusRunning})

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()

	_, err := svc.Load(ctx, backend.HistoryOptions{})
	require.NoError(err)

	assert.True(pol.Active())

	// Complete the task so the poller drains on its own.
	client.SetTask("t1", model.TaskState{Status: model.TaskStatusCompleted})
	select {
	case <-pol.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller never stopped")
	}

	task, err := reg.Get(context.TODO(), "t1")
	require.NoError(err)
	assert.Equal(model.TaskStatusCompleted, task.Status)
}

func TestServiceLoadClearsRegistryWhenUnauthorized(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, reg, _, svc := newFixture(t)
	client.HistoryErr = fmt.Errorf("token expired: %w", model.ErrUnauthorized)

	require.NoError(reg.Upsert(context.TODO(), model.Task{ID: "t1", Status: model.TaskStatusRunning}))

	_, err := svc.Load(context.TODO(), backend.HistoryOptions{})
	require.ErrorIs(err, model.ErrUnauthorized)

	all, err := reg.ListAll(context.TODO())
	require.NoError(err)
	assert.Empty(all)
}

func TestServiceLoadKeepsRegistryOnOtherErrors(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, reg, _, svc := newFixture(t)
	client.HistoryErr = fmt.Errorf("backend down")

	require.NoError(reg.Upsert(context.TODO(), model.Task{ID: "t1", Status: model.TaskStatusRunning}))

	_, err := svc.Load(context.TODO(), backend.HistoryOptions{})
	require.Error(err)

	all, err := reg.ListAll(context.TODO())
	require.NoError(err)
	assert.Len(all, 1)
}
