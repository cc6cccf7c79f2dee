// Package detail maintains the projection of the task the user is currently
// inspecting: its progress log and, once completed, its report body.
package detail

import (
	"context"
	"fmt"
	"sync"

	"github.com/astrashare/astra/internal/backend"
	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/registry"
)

// RefresherConfig is the configuration for the detail refresher.
type RefresherConfig struct {
	Backend  backend.Client
	Registry *registry.Registry
	Logger   log.Logger
}

func (c *RefresherConfig) defaults() error {
	if c.Backend == nil {
		return fmt.Errorf("backend client is required")
	}
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "detail.Refresher"})
	return nil
}

// Projection is the current detail view content.
type Projection struct {
	TaskID   string
	Progress []model.ProgressEntry
	Result   string
}

// Refresher fetches the deep state of a single task on demand. A refresh
// always pulls status+progress; the result artifact is fetched only when the
// freshly observed status is completed, because the report body can be large
// and does not exist before completion.
type Refresher struct {
	backend backend.Client
	reg     *registry.Registry
	logger  log.Logger

	mu         sync.RWMutex
	projection Projection
}

// NewRefresher creates a new detail refresher.
func NewRefresher(cfg RefresherConfig) (*Refresher, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Refresher{
		backend: cfg.Backend,
		reg:     cfg.Registry,
		logger:  cfg.Logger,
	}, nil
}

// Select marks a task as the one being viewed and resets the projection.
func (r *Refresher) Select(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.projection = Projection{TaskID: id}
}

// SelectedID returns the id of the task currently selected, "" if none.
func (r *Refresher) SelectedID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.projection.TaskID
}

// Current returns a copy of the current projection.
func (r *Refresher) Current() Projection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := r.projection
	p.Progress = append([]model.ProgressEntry{}, r.projection.Progress...)
	return p
}

// ClearIfSelected resets the projection if the given task is the selected
// one. Called when a task is deleted.
func (r *Refresher) ClearIfSelected(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.projection.TaskID == id {
		r.projection = Projection{}
	}
}

// Refresh pulls status+progress for a task, updates the registry, and fills
// the projection. The selected id is compared again at every write, so a
// response arriving after the user moved to another task cannot corrupt the
// projection of the newly selected one.
func (r *Refresher) Refresh(ctx context.Context, id string) error {
	state, err := r.backend.TaskState(ctx, id)
	if err != nil {
		return fmt.Errorf("could not refresh task %s: %w", id, err)
	}

	err = r.reg.Upsert(ctx, model.Task{
		ID:           id,
		SubjectName:  state.SubjectName,
		Status:       state.Status,
		CompletedAt:  state.CompletedAt,
		ErrorMessage: state.ErrorMessage,
	})
	if err != nil {
		return fmt.Errorf("could not update registry: %w", err)
	}

	// The server's progress list is authoritative, replace wholesale.
	r.mu.Lock()
	if r.projection.TaskID == id {
		r.projection.Progress = append([]model.ProgressEntry{}, state.Progress...)
	}
	r.mu.Unlock()

	if state.Status != model.TaskStatusCompleted {
		return nil
	}

	result, err := r.backend.TaskResult(ctx, id)
	if err != nil {
		return fmt.Errorf("could not fetch result for task %s: %w", id, err)
	}

	r.mu.Lock()
	if r.projection.TaskID == id {
		r.projection.Result = result
	}
	r.mu.Unlock()

	r.logger.Debugf("Refreshed detail for task %s (status: %s)", id, state.Status)

	return nil
}
