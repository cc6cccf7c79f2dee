package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/astrashare/astra/internal/backend"
	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/poller"
	"github.com/astrashare/astra/internal/registry"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	Backend  backend.Client
	Registry *registry.Registry
	Poller   *poller.Poller
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.History"})
	return nil
}

// Service synchronizes the local task registry from the server history.
type Service struct {
	backend  backend.Client
	registry *registry.Registry
	poller   *poller.Poller
	logger   log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		backend:  cfg.Backend,
		registry: cfg.Registry,
		poller:   cfg.Poller,
		logger:   cfg.Logger,
	}, nil
}

// Load replaces the registry contents with the server-side task history and
// resumes polling when any of the loaded tasks is still in flight. A rejected
// credential clears the registry so stale tasks from a dead session don't
// linger.
func (s *Service) Load(ctx context.Context, opts backend.HistoryOptions) ([]model.Task, error) {
	tasks, err := s.backend.History(ctx, opts)
	if err != nil {
		if errors.Is(err, model.ErrUnauthorized) {
			if clearErr := s.registry.Clear(ctx); clearErr != nil {
				s.logger.Warningf("Could not clear registry: %s", clearErr)
			}
		}
		return nil, fmt.Errorf("could not load history: %w", err)
	}

	if err := s.registry.ReplaceAll(ctx, tasks); err != nil {
		return nil, fmt.Errorf("could not store history: %w", err)
	}
	s.logger.Debugf("Loaded %d tasks from history", len(tasks))

	if s.poller != nil {
		pending, err := s.registry.ListNonTerminal(ctx)
		if err != nil {
			return nil, fmt.Errorf("could not list pending tasks: %w", err)
		}
		if len(pending) > 0 {
			s.poller.Start(ctx)
		}
	}

	return s.registry.ListAll(ctx)
}
