package poller_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrashare/astra/internal/backend/fake"
	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/poller"
	"github.com/astrashare/astra/internal/registry"
)

const testInterval = 10 * time.Millisecond

// recordingGate records every task it gets offered.
type recordingGate struct {
	mu    sync.Mutex
	tasks []model.Task
}

func (g *recordingGate) MaybeNotify(ctx context.Context, task model.Task) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tasks = append(g.tasks, task)
	return true
}

func (g *recordingGate) offered() []model.Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]model.Task{}, g.tasks...)
}

func newPollerFixture(t *testing.T) (*fake.Client, *registry.Registry) {
	client, err := fake.NewClient(fake.ClientConfig{})
	require.NoError(t, err)

	reg, err := registry.NewRegistry(registry.RegistryConfig{})
	require.NoError(t, err)

	return client, reg
}

func waitDone(t *testing.T, p *poller.Poller) {
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller never stopped")
	}
}

func TestPollerStopsWhenNothingToPoll(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, reg := newPollerFixture(t)
	require.NoError(reg.Upsert(context.TODO(), model.Task{ID: "t1", Status: model.TaskStatusCompleted}))

	p, err := poller.NewPoller(poller.PollerConfig{
		Backend:  client,
		Registry: reg,
		Interval: testInterval,
	})
	require.NoError(err)

	p.Start(context.TODO())
	waitDone(t, p)

	assert.False(p.Active())
	// The empty tick must not issue any status fetch.
	assert.Equal(0, client.StateCalls())
}

func TestPollerPollsUntilAllTerminal(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, reg := newPollerFixture(t)
	client.SetTask("t1", model.TaskState{Status: model.TaskStatusCompleted})
	require.NoError(reg.Upsert(context.TODO(), model.Task{ID: "t1", Status: model.TaskStatusRunning}))

	gate := &recordingGate{}
	p, err := poller.NewPoller(poller.PollerConfig{
		Backend:  client,
		Registry: reg,
		Gate:     gate,
		Interval: testInterval,
	})
	require.NoError(err)

	p.Start(context.TODO())
	waitDone(t, p)

	task, err := reg.Get(context.TODO(), "t1")
	require.NoError(err)
	assert.Equal(model.TaskStatusCompleted, task.Status)

	// Exactly one terminal transition, exactly one notification offer.
	offered := gate.offered()
	require.Len(offered, 1)
	assert.Equal("t1", offered[0].ID)
}

func TestPollerFetchesTasksConcurrently(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	const numTasks = 5

	client, reg := newPollerFixture(t)
	for i := 0; i < numTasks; i++ {
		id := fmt.Sprintf("t%d", i)
		client.SetTask(id, model.TaskState{Status: model.TaskStatusCompleted})
		require.NoError(reg.Upsert(context.TODO(), model.Task{ID: id, Status: model.TaskStatusRunning}))
	}

	// Every fetch of the tick blocks until all of them are in flight, so a
	// sequential poller would deadlock here.
	client.StateBarrier = numTasks

	p, err := poller.NewPoller(poller.PollerConfig{
		Backend:  client,
		Registry: reg,
		Interval: testInterval,
	})
	require.NoError(err)

	p.Start(context.TODO())
	waitDone(t, p)

	assert.Equal(numTasks, client.MaxInFlight())
}

func TestPollerToleratesFailedFetches(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, reg := newPollerFixture(t)
	client.SetTask("t1", model.TaskState{Status: model.TaskStatusRunning})
	client.StateErr = fmt.Errorf("backend down")
	require.NoError(reg.Upsert(context.TODO(), model.Task{ID: "t1", Status: model.TaskStatusRunning}))

	p, err := poller.NewPoller(poller.PollerConfig{
		Backend:  client,
		Registry: reg,
		Interval: testInterval,
	})
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()

	p.Start(ctx)

	// Give it a few ticks worth of failures, then stop it externally.
	time.Sleep(5 * testInterval)
	assert.True(p.Active())
	cancel()
	waitDone(t, p)

	// The failed fetches never touched the registry.
	task, err := reg.Get(context.TODO(), "t1")
	require.NoError(err)
	assert.Equal(model.TaskStatusRunning, task.Status)
}

func TestPollerClearsRegistryOnAuthFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, reg := newPollerFixture(t)
	client.SetTask("t1", model.TaskState{Status: model.TaskStatusRunning})
	client.StateErr = fmt.Errorf("fetching state: %w", model.ErrUnauthorized)
	require.NoError(reg.Upsert(context.TODO(), model.Task{ID: "t1", Status: model.TaskStatusRunning}))

	p, err := poller.NewPoller(poller.PollerConfig{
		Backend:  client,
		Registry: reg,
		Interval: testInterval,
	})
	require.NoError(err)

	p.Start(context.TODO())
	// The emptied registry drains the loop on its own.
	waitDone(t, p)

	tasks, err := reg.ListAll(context.TODO())
	require.NoError(err)
	assert.Empty(tasks)
}

func TestPollerStartIsIdempotent(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, reg := newPollerFixture(t)
	client.SetTask("t1", model.TaskState{Status: model.TaskStatusRunning})
	require.NoError(reg.Upsert(context.TODO(), model.Task{ID: "t1", Status: model.TaskStatusRunning}))

	p, err := poller.NewPoller(poller.PollerConfig{
		Backend:  client,
		Registry: reg,
		Interval: testInterval,
	})
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()

	p.Start(ctx)
	done := p.Done()
	p.Start(ctx)
	p.Start(ctx)

	// All starts share the one loop.
	assert.Equal(done, p.Done())

	// Let the task finish so the loop drains by itself.
	client.SetTask("t1", model.TaskState{Status: model.TaskStatusCompleted})
	waitDone(t, p)
	assert.False(p.Active())
}

func TestPollerNotifiesTerminalTransitionOnce(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, reg := newPollerFixture(t)
	client.SetTask("t1", model.TaskState{Status: model.TaskStatusRunning})
	client.SetTask("t2", model.TaskState{Status: model.TaskStatusFailed, ErrorMessage: "boom"})
	require.NoError(reg.Upsert(context.TODO(), model.Task{ID: "t1", Status: model.TaskStatusRunning}))
	require.NoError(reg.Upsert(context.TODO(), model.Task{ID: "t2", Status: model.TaskStatusRunning}))

	gate := &recordingGate{}
	p, err := poller.NewPoller(poller.PollerConfig{
		Backend:  client,
		Registry: reg,
		Gate:     gate,
		Interval: testInterval,
	})
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.TODO())
	defer cancel()

	p.Start(ctx)

	// t2 transitions right away; t1 keeps the loop alive for several ticks.
	time.Sleep(5 * testInterval)
	client.SetTask("t1", model.TaskState{Status: model.TaskStatusCompleted})
	waitDone(t, p)

	offered := gate.offered()
	require.Len(offered, 2)

	ids := map[string]model.TaskStatus{}
	for _, task := range offered {
		ids[task.ID] = task.Status
	}
	assert.Equal(model.TaskStatusCompleted, ids["t1"])
	assert.Equal(model.TaskStatusFailed, ids["t2"])
}
