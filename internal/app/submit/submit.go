package submit

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/astrashare/astra/internal/backend"
	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/poller"
	"github.com/astrashare/astra/internal/registry"
)

// ServiceConfig is the configuration for the submit service.
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Submit"})
	return nil
}

// Service handles task submission business logic.
type Service struct {
	backend  backend.Client
	registry *registry.Registry
	poller   *poller.Poller
	logger   log.Logger
}

// NewService creates a new submit service.
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

// Submit requests server-side analysis of a subject and tracks the resulting
// task. The task shows up in the registry immediately under a provisional id
// so lists never miss an in-flight submission; once the server assigns the
// canonical id the provisional entry is swapped out. A rejected submission
// leaves no trace in the registry.
func (s *Service) Submit(ctx context.Context, subjectCode string) (*model.Task, error) {
	if subjectCode == "" {
		return nil, fmt.Errorf("subject code is required: %w", model.ErrNotValid)
	}

	provisionalID := "pending-" + ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
	err := s.registry.Upsert(ctx, model.Task{
		ID:          provisionalID,
		SubjectCode: subjectCode,
		Status:      model.TaskStatusPending,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("could not track submission: %w", err)
	}

	task, err := s.backend.SubmitAnalysis(ctx, subjectCode)
	if err != nil {
		if rmErr := s.registry.Remove(ctx, provisionalID); rmErr != nil {
			s.logger.Warningf("Could not roll back provisional task: %s", rmErr)
		}
		return nil, fmt.Errorf("could not submit analysis: %w", err)
	}

	if err := s.registry.Remove(ctx, provisionalID); err != nil {
		s.logger.Warningf("Could not remove provisional task: %s", err)
	}
	if err := s.registry.Upsert(ctx, *task); err != nil {
		return nil, fmt.Errorf("could not track task: %w", err)
	}

	s.logger.WithValues(log.Kv{"task-id": task.ID, "subject": subjectCode}).Infof("Analysis submitted")

	if s.poller != nil {
		s.poller.Start(ctx)
	}

	return task, nil
}
