package fake

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/astrashare/astra/internal/backend"
	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/model"
)

// ClientConfig is the configuration for the fake backend client.
type ClientConfig struct {
	Logger log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "backend.Fake"})
	return nil
}

// Client is a fake implementation of backend.Client. It simulates the
// backend's task lifecycle in memory without any network.
type Client struct {
	mu         sync.Mutex
	cond       *sync.Cond
	tasks      map[string]*model.TaskState
	results    map[string]string
	patterns   []model.Pattern
	scanStream string
	nextID     int
	logger     log.Logger

	// Error injection, per operation.
	StateErr   error
	SubmitErr  error
	HistoryErr error
	DeleteErr  error
	ResultErr  error

	// StateBarrier, when > 0, makes TaskState block until that many calls
	// are in flight at once. Sequential callers deadlock, which makes
	// concurrency assertions deterministic.
	StateBarrier int

	stateCalls     int
	inFlight       int
	maxInFlight    int
	barrierTripped bool
	deleted        []string
}

var _ backend.Client = &Client{}

// NewClient creates a new fake backend client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Client{
		tasks:   map[string]*model.TaskState{},
		results: map[string]string{},
		logger:  cfg.Logger,
	}
	c.cond = sync.NewCond(&c.mu)

	return c, nil
}

// SetTask seeds or replaces a task state.
func (c *Client) SetTask(id string, state model.TaskState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks[id] = &state
}

// SetResult seeds the final report for a task.
func (c *Client) SetResult(id, result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[id] = result
}

// SetPatterns seeds the pattern listing.
func (c *Client) SetPatterns(patterns []model.Pattern) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = patterns
}

// SetScanStream seeds the raw body returned by RunScan.
func (c *Client) SetScanStream(body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scanStream = body
}

// StateCalls returns the number of TaskState calls so far.
func (c *Client) StateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateCalls
}

// MaxInFlight returns the highest number of simultaneous TaskState calls
// observed.
func (c *Client) MaxInFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxInFlight
}

// Deleted returns the ids deleted so far.
func (c *Client) Deleted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.deleted...)
}

// SubmitAnalysis creates a fake pending task.
func (c *Client) SubmitAnalysis(ctx context.Context, subjectCode string) (*model.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.SubmitErr != nil {
		return nil, c.SubmitErr
	}

	c.nextID++
	id := fmt.Sprintf("task-%d", c.nextID)
	c.tasks[id] = &model.TaskState{Status: model.TaskStatusPending}

	c.logger.Debugf("Submitted fake task %s for %s", id, subjectCode)

	return &model.Task{
		ID:          id,
		SubjectCode: subjectCode,
		Status:      model.TaskStatusPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// TaskState returns the seeded state of a task.
func (c *Client) TaskState(ctx context.Context, taskID string) (*model.TaskState, error) {
	c.mu.Lock()

	c.stateCalls++
	c.inFlight++
	if c.inFlight > c.maxInFlight {
		c.maxInFlight = c.inFlight
	}

	// The barrier latches once tripped: waiting on the live in-flight
	// counter would re-park callers as soon as the first one returns and
	// decrements it, with nobody left to wake them.
	if c.StateBarrier > 0 && c.inFlight >= c.StateBarrier {
		c.barrierTripped = true
		c.cond.Broadcast()
	}
	for c.StateBarrier > 0 && !c.barrierTripped {
		c.cond.Wait()
	}

	defer func() {
		c.inFlight--
		c.mu.Unlock()
	}()

	if c.StateErr != nil {
		return nil, c.StateErr
	}

	state, ok := c.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}

	stateCopy := *state
	return &stateCopy, nil
}

// TaskResult returns the seeded report for a task.
func (c *Client) TaskResult(ctx context.Context, taskID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ResultErr != nil {
		return "", c.ResultErr
	}

	result, ok := c.results[taskID]
	if !ok {
		return "", fmt.Errorf("result for task %s: %w", taskID, model.ErrNotFound)
	}

	return result, nil
}

// History returns all seeded tasks.
func (c *Client) History(ctx context.Context, opts backend.HistoryOptions) ([]model.Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.HistoryErr != nil {
		return nil, c.HistoryErr
	}

	tasks := make([]model.Task, 0, len(c.tasks))
	for id, state := range c.tasks {
		if opts.Status != nil && state.Status != *opts.Status {
			continue
		}
		tasks = append(tasks, model.Task{
			ID:           id,
			SubjectName:  state.SubjectName,
			Status:       state.Status,
			CompletedAt:  state.CompletedAt,
			ErrorMessage: state.ErrorMessage,
		})
	}

	return tasks, nil
}

// DeleteTask removes a seeded task.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.DeleteErr != nil {
		return c.DeleteErr
	}

	delete(c.tasks, taskID)
	c.deleted = append(c.deleted, taskID)

	return nil
}

// Patterns returns the seeded pattern listing.
func (c *Client) Patterns(ctx context.Context) ([]model.Pattern, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Pattern{}, c.patterns...), nil
}

// RunScan returns the seeded scan stream body.
func (c *Client) RunScan(ctx context.Context, patternID string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if patternID == "" {
		return nil, fmt.Errorf("pattern is required: %w", model.ErrNotValid)
	}

	return io.NopCloser(strings.NewReader(c.scanStream)), nil
}
