// Package registry holds the authoritative in-memory list of known analysis
// tasks. It is the single source of truth for the command layer and for the
// poller.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/model"
)

// RegistryConfig is the configuration for the task registry.
type RegistryConfig struct {
	Logger log.Logger
}

func (c *RegistryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "registry.Registry"})
	return nil
}

// Registry is a mutex-guarded in-memory task list keyed by task id. Each
// task update is applied atomically; readers never observe a half-merged
// task.
type Registry struct {
	tasks  map[string]model.Task
	mu     sync.RWMutex
	logger log.Logger
}

// NewRegistry creates a new empty registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Registry{
		tasks:  make(map[string]model.Task),
		logger: cfg.Logger,
	}, nil
}

// Upsert inserts a task or merges it into the existing entry with the same
// id. Merging replaces only the fields the caller supplies; zero-valued
// fields preserve what is already stored (notably CreatedAt, SubjectCode and
// SubjectName). A task already in a terminal status never transitions back
// to a non-terminal one: late, out-of-order status responses cannot undo a
// completion.
func (r *Registry) Upsert(ctx context.Context, t model.Task) error {
	if t.ID == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.tasks[t.ID]
	if !ok {
		r.tasks[t.ID] = t
		r.logger.Debugf("Inserted task %s", t.ID)
		return nil
	}

	merged := existing
	if t.SubjectCode != "" {
		merged.SubjectCode = t.SubjectCode
	}
	if t.SubjectName != "" {
		merged.SubjectName = t.SubjectName
	}
	if !t.CreatedAt.IsZero() && existing.CreatedAt.IsZero() {
		merged.CreatedAt = t.CreatedAt
	}

	// Status, completion time and error travel together.
	if t.Status != "" && !(existing.Status.IsTerminal() && !t.Status.IsTerminal()) {
		merged.Status = t.Status
		if t.CompletedAt != nil {
			merged.CompletedAt = t.CompletedAt
		}
		if t.ErrorMessage != "" {
			merged.ErrorMessage = t.ErrorMessage
		}
	}

	r.tasks[t.ID] = merged
	r.logger.Debugf("Updated task %s (status: %s)", t.ID, merged.Status)

	return nil
}

// Remove deletes a task from the registry.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	delete(r.tasks, id)
	r.logger.Debugf("Removed task %s", id)

	return nil
}

// Get retrieves a task by id.
func (r *Registry) Get(ctx context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	// Return a copy.
	taskCopy := task
	return &taskCopy, nil
}

// ListAll returns all tasks, most recently created first.
func (r *Registry) ListAll(ctx context.Context) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedLocked(func(model.Task) bool { return true }), nil
}

// ListNonTerminal returns the tasks still expecting transitions, most
// recently created first.
func (r *Registry) ListNonTerminal(ctx context.Context) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedLocked(func(t model.Task) bool { return !t.Status.IsTerminal() }), nil
}

// ReplaceAll swaps the whole registry content for the given tasks. Used when
// reconciling against the server's history listing.
func (r *Registry) ReplaceAll(ctx context.Context, tasks []model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			return fmt.Errorf("task id is required: %w", model.ErrNotValid)
		}
		next[t.ID] = t
	}

	r.tasks = next
	r.logger.Debugf("Replaced registry content with %d tasks", len(next))

	return nil
}

// Clear empties the registry. This is the recovery policy for an
// authentication failure: drop local state and let the user re-authenticate.
func (r *Registry) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks = make(map[string]model.Task)
	r.logger.Debugf("Cleared registry")

	return nil
}

func (r *Registry) sortedLocked(keep func(model.Task) bool) []model.Task {
	tasks := make([]model.Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		if keep(t) {
			tasks = append(tasks, t)
		}
	}

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})

	return tasks
}
