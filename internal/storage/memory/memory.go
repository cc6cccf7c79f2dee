package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/astrashare/astra/internal/log"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.Repository. Used by
// tests and ephemeral runs; nothing survives the process.
type Repository struct {
	notified   []string
	notifiedID map[string]bool
	settings   map[string]string
	mu         sync.RWMutex
	logger     log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		notifiedID: make(map[string]bool),
		settings:   make(map[string]string),
		logger:     cfg.Logger,
	}, nil
}

// ListNotified returns the notified task ids, oldest first.
func (r *Repository) ListNotified(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string{}, r.notified...), nil
}

// AddNotified records a task id, evicting the oldest entries past limit.
func (r *Repository) AddNotified(ctx context.Context, taskID string, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.notifiedID[taskID] {
		r.notified = append(r.notified, taskID)
		r.notifiedID[taskID] = true
	}

	for limit > 0 && len(r.notified) > limit {
		oldest := r.notified[0]
		r.notified = r.notified[1:]
		delete(r.notifiedID, oldest)
	}

	r.logger.Debugf("Recorded notified task %s", taskID)

	return nil
}

// GetNotifyPermission returns the stored permission value, "" when unset.
func (r *Repository) GetNotifyPermission(ctx context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.settings["notify_permission"], nil
}

// SetNotifyPermission stores the permission value.
func (r *Repository) SetNotifyPermission(ctx context.Context, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings["notify_permission"] = value

	return nil
}
