// Package poller implements the periodic, self-terminating refresh loop for
// every task still in a non-terminal state.
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/astrashare/astra/internal/backend"
	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/registry"
)

const (
	// DefaultInterval is the fixed tick cadence. Tasks complete within a
	// couple of minutes and staleness tolerance is low, so there is no
	// backoff; the implicit retry for a failed fetch is simply the next tick.
	DefaultInterval = 3 * time.Second
)

// NotificationGate decides whether a terminal transition produces a user
// notification.
type NotificationGate interface {
	MaybeNotify(ctx context.Context, task model.Task) bool
}

// DetailRefresher is the opportunistic hook into the detail projection: when
// the task currently being viewed completes, its artifact gets pulled without
// waiting for the user.
type DetailRefresher interface {
	SelectedID() string
	Refresh(ctx context.Context, id string) error
}

// PollerConfig is the configuration for the poller.
type PollerConfig struct {
	Backend  backend.Client
	Registry *registry.Registry
	// Gate is optional; without it terminal transitions notify nobody.
	Gate NotificationGate
	// Detail is optional; without it completions are not fetched eagerly.
	Detail   DetailRefresher
	Interval time.Duration
	Logger   log.Logger
}

func (c *PollerConfig) defaults() error {
	if c.Backend == nil {
		return fmt.Errorf("backend client is required")
	}
	if c.Registry == nil {
		return fmt.Errorf("registry is required")
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "poller.Poller"})
	return nil
}

// Poller is a two-state machine: idle (no loop) and active (one repeating
// timer loop). At most one loop exists regardless of how many times Start is
// called. The loop cancels itself at the start of the first tick that finds
// no non-terminal tasks, before doing any work that tick.
type Poller struct {
	backend  backend.Client
	reg      *registry.Registry
	gate     NotificationGate
	detail   DetailRefresher
	interval time.Duration
	logger   log.Logger

	mu     sync.Mutex
	active bool
	done   chan struct{}
}

// NewPoller creates a new poller in the idle state.
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Poller{
		backend:  cfg.Backend,
		reg:      cfg.Registry,
		gate:     cfg.Gate,
		detail:   cfg.Detail,
		interval: cfg.Interval,
		logger:   cfg.Logger,
	}, nil
}

// Start transitions the poller to active. A start request while a loop is
// already running is a no-op. The loop also stops when ctx is cancelled.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active {
		p.logger.Debugf("Poller already active")
		return
	}

	p.active = true
	p.done = make(chan struct{})
	p.logger.Debugf("Poller started")

	go p.loop(ctx, p.done)
}

// Active reports whether a loop is currently running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Done returns a channel closed when the current loop stops. If the poller
// is idle the returned channel is already closed.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.active {
		closed := make(chan struct{})
		close(closed)
		return closed
	}

	return p.done
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		p.active = false
		p.mu.Unlock()
		close(done)
		p.logger.Debugf("Poller stopped")
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.tick(ctx) {
				return
			}
		}
	}
}

// tick refreshes every non-terminal task concurrently. It returns false when
// there is nothing left to poll, which terminates the loop before any
// network call is made that tick.
func (p *Poller) tick(ctx context.Context) bool {
	tasks, err := p.reg.ListNonTerminal(ctx)
	if err != nil {
		p.logger.Errorf("Could not list tasks: %s", err)
		return true
	}

	if len(tasks) == 0 {
		return false
	}

	// All status fetches for the tick are issued together; a slow task must
	// not delay the others.
	var wg sync.WaitGroup
	for _, t := range tasks {
		wg.Add(1)
		go func(t model.Task) {
			defer wg.Done()
			p.refreshTask(ctx, t)
		}(t)
	}
	wg.Wait()

	return true
}

func (p *Poller) refreshTask(ctx context.Context, t model.Task) {
	state, err := p.backend.TaskState(ctx, t.ID)
	if err != nil {
		// An expired session empties the registry, which drains the loop on
		// the next tick; the user has to authenticate again.
		if errors.Is(err, model.ErrUnauthorized) {
			p.logger.Warningf("Session no longer valid, dropping tracked tasks")
			if err := p.reg.Clear(ctx); err != nil {
				p.logger.Errorf("Could not clear registry: %s", err)
			}
			return
		}
		// An individual failed fetch never stops the loop nor the other
		// fetches of this tick; the next tick retries.
		p.logger.Warningf("Could not fetch status for task %s: %s", t.ID, err)
		return
	}

	err = p.reg.Upsert(ctx, model.Task{
		ID:           t.ID,
		SubjectName:  state.SubjectName,
		Status:       state.Status,
		CompletedAt:  state.CompletedAt,
		ErrorMessage: state.ErrorMessage,
	})
	if err != nil {
		p.logger.Errorf("Could not update task %s: %s", t.ID, err)
		return
	}

	// Edge-triggered hooks: only a transition into a terminal state counts.
	if t.Status.IsTerminal() || !state.Status.IsTerminal() {
		return
	}

	updated, err := p.reg.Get(ctx, t.ID)
	if err != nil {
		return
	}

	if p.gate != nil {
		p.gate.MaybeNotify(ctx, *updated)
	}

	if p.detail != nil && p.detail.SelectedID() == t.ID {
		if err := p.detail.Refresh(ctx, t.ID); err != nil {
			p.logger.Warningf("Could not refresh detail for task %s: %s", t.ID, err)
		}
	}
}
