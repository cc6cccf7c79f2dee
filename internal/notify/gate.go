package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/storage"
)

const (
	// DefaultMaxEntries bounds the persisted notified set.
	DefaultMaxEntries = 200
)

// GateConfig is the configuration for the notification gate.
type GateConfig struct {
	Repository storage.Repository
	Notifier   Notifier
	Logger     log.Logger
	// MaxEntries bounds the persisted notified set (DefaultMaxEntries if 0).
	MaxEntries int
}

func (c *GateConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Notifier == nil {
		return fmt.Errorf("notifier is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	if c.MaxEntries == 0 {
		c.MaxEntries = DefaultMaxEntries
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "notify.Gate"})
	return nil
}

// Gate fires a user notification the first time a task is observed in a
// terminal state, and never again for that task id. The notified set is
// restored from durable storage at creation, so a new process does not
// re-notify for tasks already acknowledged.
type Gate struct {
	repo       storage.Repository
	notifier   Notifier
	logger     log.Logger
	maxEntries int

	mu         sync.Mutex
	permission Permission
	seen       map[string]bool
	persistWG  sync.WaitGroup
}

// NewGate creates a new gate, restoring the notified set and the permission
// state from the repository.
func NewGate(ctx context.Context, cfg GateConfig) (*Gate, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	g := &Gate{
		repo:       cfg.Repository,
		notifier:   cfg.Notifier,
		logger:     cfg.Logger,
		maxEntries: cfg.MaxEntries,
		permission: PermissionDefault,
		seen:       map[string]bool{},
	}

	// A failed restore degrades to an empty set; it never blocks startup.
	ids, err := cfg.Repository.ListNotified(ctx)
	if err != nil {
		g.logger.Warningf("Could not restore notified set: %s", err)
	}
	for _, id := range ids {
		g.seen[id] = true
	}

	perm, err := cfg.Repository.GetNotifyPermission(ctx)
	if err != nil {
		g.logger.Warningf("Could not restore notification permission: %s", err)
	}
	if perm != "" {
		g.permission = Permission(perm)
	}

	return g, nil
}

// Permission returns the current permission state.
func (g *Gate) Permission() Permission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.permission
}

// SetPermission updates and persists the permission state. Only ever called
// from an explicit user action; the gate never requests permission itself.
func (g *Gate) SetPermission(ctx context.Context, p Permission) error {
	switch p {
	case PermissionGranted, PermissionDenied, PermissionDefault, PermissionUnsupported:
	default:
		return fmt.Errorf("unknown permission %q: %w", p, model.ErrNotValid)
	}

	g.mu.Lock()
	g.permission = p
	g.mu.Unlock()

	if err := g.repo.SetNotifyPermission(ctx, string(p)); err != nil {
		return fmt.Errorf("could not persist permission: %w", err)
	}

	return nil
}

// MaybeNotify fires a notification for a task if permission is granted, the
// task is terminal, and it was never notified before. The id is recorded
// in-memory before the notification is delivered, so re-entrant calls cannot
// double-fire; persistence happens asynchronously and its failure only gets
// logged. Returns whether a notification fired.
func (g *Gate) MaybeNotify(ctx context.Context, task model.Task) bool {
	if !task.Status.IsTerminal() {
		return false
	}

	g.mu.Lock()
	if g.permission != PermissionGranted || g.seen[task.ID] {
		g.mu.Unlock()
		return false
	}
	g.seen[task.ID] = true
	g.mu.Unlock()

	title, body := notificationText(task)
	if err := g.notifier.Notify(ctx, title, body); err != nil {
		g.logger.Warningf("Could not deliver notification for task %s: %s", task.ID, err)
	}

	g.persistWG.Add(1)
	go func() {
		defer g.persistWG.Done()
		// Fire and forget: a persistence failure must not undo the decision.
		if err := g.repo.AddNotified(context.WithoutCancel(ctx), task.ID, g.maxEntries); err != nil {
			g.logger.Warningf("Could not persist notified task %s: %s", task.ID, err)
		}
	}()

	return true
}

// Flush waits for pending persistence writes. Used on teardown and in tests.
func (g *Gate) Flush() {
	g.persistWG.Wait()
}

func notificationText(task model.Task) (title, body string) {
	subject := task.SubjectName
	if subject == "" {
		subject = task.SubjectCode
	}

	if task.Status == model.TaskStatusFailed {
		body = fmt.Sprintf("Analysis of %s failed", subject)
		if task.ErrorMessage != "" {
			body += ": " + task.ErrorMessage
		}
		return "Analysis failed", body
	}

	return "Analysis completed", fmt.Sprintf("Report for %s is ready", subject)
}
