package detail_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrashare/astra/internal/backend/fake"
	"github.com/astrashare/astra/internal/detail"
	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/registry"
)

func newFixture(t *testing.T) (*fake.Client, *registry.Registry, *detail.Refresher) {
	client, err := fake.NewClient(fake.ClientConfig{})
	require.NoError(t, err)

	reg, err := registry.NewRegistry(registry.RegistryConfig{})
	require.NoError(t, err)

	refresher, err := detail.NewRefresher(detail.RefresherConfig{
		Backend:  client,
		Registry: reg,
	})
	require.NoError(t, err)

	return client, reg, refresher
}

func TestRefresherRefresh(t *testing.T) {
	ts := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		state     model.TaskState
		result    string
		resultErr error
		expResult string
		expErr    bool
	}{
		"a running task should fill progress and skip the result fetch": {
			state: model.TaskState{
				Status: model.TaskStatusRunning,
				Progress: []model.ProgressEntry{
					{Message: "Gathering fundamentals", AgentTag: "fundamental", Timestamp: &ts},
				},
			},
			// Seeded result must not be fetched for a non-completed task.
			result:    "should not appear",
			expResult: "",
		},

		"a completed task should fetch the result too": {
			state: model.TaskState{
				Status: model.TaskStatusCompleted,
				Progress: []model.ProgressEntry{
					{Message: "Writing report", AgentTag: "writer"},
				},
			},
			result:    "# Samsung Electronics\nStrong buy.",
			expResult: "# Samsung Electronics\nStrong buy.",
		},

		"a failed result fetch should surface the error": {
			state:     model.TaskState{Status: model.TaskStatusCompleted},
			resultErr: fmt.Errorf("result storage down"),
			expErr:    true,
		},

		"a failed task should not fetch the result": {
			state:     model.TaskState{Status: model.TaskStatusFailed, ErrorMessage: "model overloaded"},
			result:    "should not appear",
			expResult: "",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			client, reg, refresher := newFixture(t)
			client.SetTask("t1", test.state)
			client.SetResult("t1", test.result)
			client.ResultErr = test.resultErr

			refresher.Select("t1")
			err := refresher.Refresh(context.TODO(), "t1")

			if test.expErr {
				require.Error(err)
				return
			}
			require.NoError(err)

			projection := refresher.Current()
			assert.Equal("t1", projection.TaskID)
			if len(test.state.Progress) > 0 {
				assert.Equal(test.state.Progress, projection.Progress)
			} else {
				assert.Empty(projection.Progress)
			}
			assert.Equal(test.expResult, projection.Result)

			// The registry picked up the refreshed status.
			task, err := reg.Get(context.TODO(), "t1")
			require.NoError(err)
			assert.Equal(test.state.Status, task.Status)
			assert.Equal(test.state.ErrorMessage, task.ErrorMessage)
		})
	}
}

func TestRefresherStaleResponseCannotCorruptSelection(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, _, refresher := newFixture(t)
	client.SetTask("t1", model.TaskState{
		Status:   model.TaskStatusCompleted,
		Progress: []model.ProgressEntry{{Message: "old task progress"}},
	})
	client.SetResult("t1", "old report")
	client.SetTask("t2", model.TaskState{Status: model.TaskStatusRunning})

	refresher.Select("t1")
	// The user moves on before the t1 response lands.
	refresher.Select("t2")

	require.NoError(refresher.Refresh(context.TODO(), "t1"))

	projection := refresher.Current()
	assert.Equal("t2", projection.TaskID)
	assert.Empty(projection.Progress)
	assert.Empty(projection.Result)
}

func TestRefresherSelectResetsProjection(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	client, _, refresher := newFixture(t)
	client.SetTask("t1", model.TaskState{
		Status:   model.TaskStatusCompleted,
		Progress: []model.ProgressEntry{{Message: "done"}},
	})
	client.SetResult("t1", "report")

	refresher.Select("t1")
	require.NoError(refresher.Refresh(context.TODO(), "t1"))
	require.NotEmpty(refresher.Current().Result)

	// Selecting another task wipes the previous task's artifacts.
	refresher.Select("t2")
	projection := refresher.Current()
	assert.Equal("t2", projection.TaskID)
	assert.Empty(projection.Progress)
	assert.Empty(projection.Result)
}

func TestRefresherClearIfSelected(t *testing.T) {
	assert := assert.New(t)

	_, _, refresher := newFixture(t)

	refresher.Select("t1")
	refresher.ClearIfSelected("t2")
	assert.Equal("t1", refresher.SelectedID())

	refresher.ClearIfSelected("t1")
	assert.Empty(refresher.SelectedID())
}
