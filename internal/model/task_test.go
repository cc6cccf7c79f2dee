package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/astrashare/astra/internal/model"
)

func TestTaskStatusIsTerminal(t *testing.T) {
	tests := map[string]struct {
		status      model.TaskStatus
		expTerminal bool
	}{
		"pending is not terminal":         {status: model.TaskStatusPending},
		"running is not terminal":         {status: model.TaskStatusRunning},
		"an empty status is not terminal": {status: model.TaskStatus("")},
		"completed is terminal":           {status: model.TaskStatusCompleted, expTerminal: true},
		"failed is terminal":              {status: model.TaskStatusFailed, expTerminal: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expTerminal, test.status.IsTerminal())
		})
	}
}
