package remove_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrashare/astra/internal/app/remove"
	"github.com/astrashare/astra/internal/backend/fake"
	"github.com/astrashare/astra/internal/detail"
	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/registry"
)

func newFixture(t *testing.T) (*fake.Client, *registry.Registry, *detail.Refresher, *remove.Service) {
	client, err := fake.NewClient(fake.ClientConfig{})
	require.NoError(t, err)

	reg, err := registry.NewRegistry(registry.RegistryConfig{})
	require.NoError(t, err)

	refresher, err := detail.NewRefresher(detail.RefresherConfig{
		Backend:  client,
		Registry: reg,
	})
	require.NoError(t, err)

	svc, err := remove.NewService(remove.ServiceConfig{
		Backend:  client,
		Registry: reg,
		Detail:   refresher,
	})
	require.NoError(t, err)

	return client, reg, refresher, svc
}

func TestServiceRemove(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, reg, refresher, svc := newFixture(t)
	client.SetTask("t1", model.TaskState{Status: model.TaskStatusCompleted})
	require.NoError(reg.Upsert(context.TODO(), model.Task{ID: "t1", Status: model.TaskStatusCompleted}))
	refresher.Select("t1")

	require.NoError(svc.Remove(context.TODO(), "t1"))

	assert.Equal([]string{"t1"}, client.Deleted())

	_, err := reg.Get(context.TODO(), "t1")
	assert.ErrorIs(err, model.ErrNotFound)

	// The detail view of the deleted task is gone too.
	assert.Empty(refresher.SelectedID())
}

func TestServiceRemoveKeepsTaskOnServerError(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, reg, _, svc := newFixture(t)
	client.DeleteErr = fmt.Errorf("backend down")
	require.NoError(reg.Upsert(context.TODO(), model.Task{ID: "t1", Status: model.TaskStatusCompleted}))

	err := svc.Remove(context.TODO(), "t1")
	require.Error(err)

	// The failed server delete leaves the task tracked.
	task, err := reg.Get(context.TODO(), "t1")
	require.NoError(err)
	assert.Equal("t1", task.ID)
}

func TestServiceRemoveValidation(t *testing.T) {
	require := require.New(t)

	_, _, _, svc := newFixture(t)

	err := svc.Remove(context.TODO(), "")
	require.ErrorIs(err, model.ErrNotValid)
}

func TestServiceRemoveIgnoresUntrackedTask(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, _, _, svc := newFixture(t)
	client.SetTask("t1", model.TaskState{Status: model.TaskStatusCompleted})

	// Not tracked locally; the server delete still happens.
	require.NoError(svc.Remove(context.TODO(), "t1"))
	assert.Equal([]string{"t1"}, client.Deleted())
}
