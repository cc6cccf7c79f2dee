package remove

import (
	"context"
	"fmt"

	"github.com/astrashare/astra/internal/backend"
	"github.com/astrashare/astra/internal/detail"
	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/registry"
)

// ServiceConfig is the configuration for the remove service.
type ServiceConfig struct {
	Backend  backend.Client
	Registry *registry.Registry
	Detail   *detail.Refresher
	Logger   log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Backend == nil {
		return fmt.Errorf("backend client is required")
	}
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Remove"})
	return nil
}

// Service handles task deletion business logic.
type Service struct {
	backend  backend.Client
	registry *registry.Registry
	detail   *detail.Refresher
	logger   log.Logger
}

// NewService creates a new remove service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		backend:  cfg.Backend,
		registry: cfg.Registry,
		detail:   cfg.Detail,
		logger:   cfg.Logger,
	}, nil
}

// Remove deletes a task on the server and drops it from local tracking. The
// server delete must succeed before local state is touched so a failed call
// leaves the task listed.
func (s *Service) Remove(ctx context.Context, taskID string) error {
	if taskID == "" {
		return fmt.Errorf("task id is required: %w", model.ErrNotValid)
	}

	if err := s.backend.DeleteTask(ctx, taskID); err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}

	if err := s.registry.Remove(ctx, taskID); err != nil {
		s.logger.WithValues(log.Kv{"task-id": taskID}).Warningf("Task deleted on server but not tracked locally: %s", err)
	}

	if s.detail != nil {
		s.detail.ClearIfSelected(taskID)
	}

	s.logger.WithValues(log.Kv{"task-id": taskID}).Infof("Task deleted")

	return nil
}
