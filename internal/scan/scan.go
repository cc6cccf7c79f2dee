// Package scan manages one cancellable streaming scan: a single request
// whose body is an event stream of progress/match/completion/error frames.
package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/astrashare/astra/internal/backend"
	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/stream"
)

// State is the scan session state.
type State string

const (
	// StateIdle means no scan ran yet or the previous outcome was consumed.
	StateIdle State = "idle"
	// StateRunning means a scan stream is open.
	StateRunning State = "running"
	// StateCompleted means the last scan ran to the end.
	StateCompleted State = "completed"
	// StateFailed means the last scan ended with a server-reported error.
	StateFailed State = "failed"
	// StateCancelled means the user stopped the last scan. Not a failure.
	StateCancelled State = "cancelled"
)

// SessionConfig is the configuration for a scan session.
type SessionConfig struct {
	Backend backend.Client
	Logger  log.Logger
	// OnProgress is an optional live callback for counter updates.
	OnProgress func(model.ScanProgress)
	// OnMatch is an optional live callback for accumulated matches.
	OnMatch func(model.ScanMatch)
}

func (c *SessionConfig) defaults() error {
	if c.Backend == nil {
		return fmt.Errorf("backend client is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "scan.Session"})
	return nil
}

// Session owns one scan request lifecycle end to end. Only one scan may run
// at a time; starting while running is rejected outright, never queued. The
// session shares no state with the task registry.
type Session struct {
	backend    backend.Client
	logger     log.Logger
	onProgress func(model.ScanProgress)
	onMatch    func(model.ScanMatch)

	mu       sync.Mutex
	state    State
	runID    string
	matches  []model.ScanMatch
	progress model.ScanProgress
	errMsg   string
	cancel   context.CancelFunc
}

// NewSession creates a new idle scan session.
func NewSession(cfg SessionConfig) (*Session, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Session{
		backend:    cfg.Backend,
		logger:     cfg.Logger,
		onProgress: cfg.OnProgress,
		onMatch:    cfg.OnMatch,
		state:      StateIdle,
	}, nil
}

// State returns the session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RunID returns the id of the current or last run, "" before the first run.
func (s *Session) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// Progress returns the current scan counter.
func (s *Session) Progress() model.ScanProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Matches returns a copy of the accumulated matches.
func (s *Session) Matches() []model.ScanMatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ScanMatch{}, s.matches...)
}

// ErrorMessage returns the server-reported error of a failed scan, "" otherwise.
func (s *Session) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Stop signals cancellation of the in-flight scan request. Stopping is an
// expected outcome, not a fault; the read loop observes it and finishes
// without recording an error.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
}

// --- JSON wire types (scan stream payload schemas) ---

type progressEventJSON struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

type matchEventJSON struct {
	Current int            `json:"current"`
	Total   int            `json:"total"`
	Stock   matchStockJSON `json:"stock"`
}

type matchStockJSON struct {
	Code       string                 `json:"code"`
	Name       string                 `json:"name"`
	BaseDate   string                 `json:"base_date"`
	SignalDate string                 `json:"signal_date"`
	Details    map[string]interface{} `json:"details"`
}

type completeEventJSON struct {
	TotalScanned int `json:"total_scanned"`
}

type errorEventJSON struct {
	Message string `json:"message"`
}

// Start runs one scan for a pattern, blocking until the stream ends, the
// server reports an error, or Stop is called. It rejects the call if a scan
// is already running, without touching the in-progress accumulator.
func (s *Session) Start(ctx context.Context, patternID string) error {
	if patternID == "" {
		return fmt.Errorf("no pattern selected: %w", model.ErrNotValid)
	}

	ctx, cancel := context.WithCancel(ctx)
	runID := uuid.NewString()

	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		cancel()
		return fmt.Errorf("scan session: %w", model.ErrAlreadyRunning)
	}
	s.state = StateRunning
	s.runID = runID
	s.matches = nil
	s.progress = model.ScanProgress{}
	s.errMsg = ""
	s.cancel = cancel
	s.mu.Unlock()

	defer cancel()

	logger := s.logger.WithValues(log.Kv{"run-id": runID, "pattern": patternID})
	logger.Debugf("Starting scan")

	body, err := s.backend.RunScan(ctx, patternID)
	if err != nil {
		return s.finish(StateFailed, fmt.Errorf("could not start scan: %w", err))
	}
	defer body.Close()

	decoder, err := stream.NewDecoder(stream.DecoderConfig{Reader: body, Logger: logger})
	if err != nil {
		return s.finish(StateFailed, fmt.Errorf("could not create decoder: %w", err))
	}

	for {
		frame, err := decoder.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debugf("Scan stream finished")
				return s.finish(StateCompleted, nil)
			}
			if ctx.Err() != nil {
				logger.Debugf("Scan cancelled")
				return s.finish(StateCancelled, nil)
			}
			return s.finish(StateFailed, fmt.Errorf("scan stream broken: %w", err))
		}

		if stop, err := s.handleFrame(frame); stop {
			return s.finish(StateFailed, err)
		}
	}
}

// handleFrame dispatches one decoded frame. It returns stop == true when the
// frame ends the session with a server-reported error.
func (s *Session) handleFrame(frame *stream.Frame) (stop bool, err error) {
	switch frame.Type {
	case "progress":
		var ev progressEventJSON
		if err := json.Unmarshal(frame.Payload, &ev); err != nil {
			return false, nil
		}
		s.setProgress(model.ScanProgress{Current: ev.Current, Total: ev.Total})

	case "match":
		var ev matchEventJSON
		if err := json.Unmarshal(frame.Payload, &ev); err != nil {
			return false, nil
		}
		s.setProgress(model.ScanProgress{Current: ev.Current, Total: ev.Total})
		s.addMatch(model.ScanMatch{
			SubjectCode: ev.Stock.Code,
			SubjectName: ev.Stock.Name,
			BaseDate:    ev.Stock.BaseDate,
			SignalDate:  ev.Stock.SignalDate,
			Details:     ev.Stock.Details,
		})

	case "complete":
		var ev completeEventJSON
		if err := json.Unmarshal(frame.Payload, &ev); err != nil {
			return false, nil
		}
		// Finalize the counter at the reported total.
		s.setProgress(model.ScanProgress{Current: ev.TotalScanned, Total: ev.TotalScanned})

	case "error":
		var ev errorEventJSON
		if err := json.Unmarshal(frame.Payload, &ev); err != nil {
			return false, nil
		}
		s.mu.Lock()
		s.errMsg = ev.Message
		s.mu.Unlock()
		return true, fmt.Errorf("scan failed: %s", ev.Message)

	default:
		s.logger.Debugf("Ignoring unknown frame type %q", frame.Type)
	}

	return false, nil
}

func (s *Session) setProgress(p model.ScanProgress) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()

	if s.onProgress != nil {
		s.onProgress(p)
	}
}

func (s *Session) addMatch(m model.ScanMatch) {
	s.mu.Lock()
	s.matches = append(s.matches, m)
	s.mu.Unlock()

	if s.onMatch != nil {
		s.onMatch(m)
	}
}

func (s *Session) finish(state State, err error) error {
	s.mu.Lock()
	s.state = state
	s.cancel = nil
	s.mu.Unlock()

	return err
}
