package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/astrashare/astra/internal/log"
	"github.com/astrashare/astra/internal/model"
)

const (
	submitPath   = "/api/analyze/async"
	taskPath     = "/api/analyze/task"
	historyPath  = "/api/analyze/history"
	patternsPath = "/api/screener/patterns"
	scanRunPath  = "/api/screener/run"
)

// APIClientConfig configures the HTTP backend client.
type APIClientConfig struct {
	// APIURL is the backend base URL (e.g. "http://localhost:8000").
	APIURL string
	// Token is the bearer token forwarded on authenticated calls.
	Token string
	// HTTPClient is the HTTP client for all requests.
	HTTPClient *http.Client
	// Logger for logging.
	Logger log.Logger
}

func (c *APIClientConfig) defaults() error {
	if c.APIURL == "" {
		return fmt.Errorf("api url is required")
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "backend.APIClient"})
	return nil
}

// APIClient implements Client over the backend's HTTP+JSON/SSE API.
type APIClient struct {
	apiURL     string
	token      string
	httpClient *http.Client
	logger     log.Logger
}

var _ Client = &APIClient{}

// NewAPIClient creates a new HTTP backend client.
func NewAPIClient(cfg APIClientConfig) (*APIClient, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &APIClient{
		apiURL:     cfg.APIURL,
		token:      cfg.Token,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
	}, nil
}

// --- JSON wire types (private, backend API schemas) ---

type submitRequestJSON struct {
	StockCode string `json:"stock_code"`
}

type taskJSON struct {
	TaskID       string `json:"task_id"`
	StockCode    string `json:"stock_code"`
	StockName    string `json:"stock_name"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	CompletedAt  string `json:"completed_at"`
	ErrorMessage string `json:"error_message"`
}

type taskStateJSON struct {
	Status       string              `json:"status"`
	StockName    string              `json:"stock_name"`
	CompletedAt  string              `json:"completed_at"`
	ErrorMessage string              `json:"error_message"`
	Progress     []progressEntryJSON `json:"progress"`
}

type progressEntryJSON struct {
	Message   string `json:"message"`
	Agent     string `json:"agent"`
	Timestamp string `json:"timestamp"`
}

type taskResultJSON struct {
	Status string `json:"status"`
	Result string `json:"result"`
}

type historyJSON struct {
	Tasks []taskJSON `json:"tasks"`
}

type patternsJSON struct {
	Patterns []patternJSON `json:"patterns"`
}

type patternJSON struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

type errorJSON struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// SubmitAnalysis creates a new analysis task.
func (c *APIClient) SubmitAnalysis(ctx context.Context, subjectCode string) (*model.Task, error) {
	if subjectCode == "" {
		return nil, fmt.Errorf("subject code is required: %w", model.ErrNotValid)
	}

	body, err := json.Marshal(submitRequestJSON{StockCode: subjectCode})
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, submitPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var wire taskJSON
	if err := c.doJSON(req, &wire); err != nil {
		return nil, fmt.Errorf("could not submit analysis: %w", err)
	}

	task := mapTask(wire)
	c.logger.Debugf("Submitted analysis for %s: task %s", subjectCode, task.ID)

	return &task, nil
}

// TaskState returns the current status and progress log of a task.
func (c *APIClient) TaskState(ctx context.Context, taskID string) (*model.TaskState, error) {
	req, err := c.newRequest(ctx, http.MethodGet, taskPath+"/"+url.PathEscape(taskID), nil)
	if err != nil {
		return nil, err
	}

	var wire taskStateJSON
	if err := c.doJSON(req, &wire); err != nil {
		return nil, fmt.Errorf("could not get task status: %w", err)
	}

	state := model.TaskState{
		Status:       model.TaskStatus(wire.Status),
		SubjectName:  wire.StockName,
		CompletedAt:  parseTimestamp(wire.CompletedAt),
		ErrorMessage: wire.ErrorMessage,
		Progress:     make([]model.ProgressEntry, 0, len(wire.Progress)),
	}
	for _, p := range wire.Progress {
		state.Progress = append(state.Progress, model.ProgressEntry{
			Message:   p.Message,
			AgentTag:  p.Agent,
			Timestamp: parseTimestamp(p.Timestamp),
		})
	}

	return &state, nil
}

// TaskResult returns the final report body of a completed task.
func (c *APIClient) TaskResult(ctx context.Context, taskID string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, taskPath+"/"+url.PathEscape(taskID)+"/result", nil)
	if err != nil {
		return "", err
	}

	var wire taskResultJSON
	if err := c.doJSON(req, &wire); err != nil {
		return "", fmt.Errorf("could not get task result: %w", err)
	}

	return wire.Result, nil
}

// History returns all tasks owned by the authenticated caller.
func (c *APIClient) History(ctx context.Context, opts HistoryOptions) ([]model.Task, error) {
	q := url.Values{}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Status != nil {
		q.Set("status", string(*opts.Status))
	}
	path := historyPath
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var wire historyJSON
	if err := c.doJSON(req, &wire); err != nil {
		return nil, fmt.Errorf("could not get history: %w", err)
	}

	tasks := make([]model.Task, 0, len(wire.Tasks))
	for _, t := range wire.Tasks {
		tasks = append(tasks, mapTask(t))
	}

	return tasks, nil
}

// DeleteTask removes a task server-side.
func (c *APIClient) DeleteTask(ctx context.Context, taskID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, taskPath+"/"+url.PathEscape(taskID), nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("could not delete task: %w", err)
	}
	defer resp.Body.Close()

	// Any 2xx counts as a successful delete.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("could not delete task: %w", statusError(resp))
	}

	c.logger.Debugf("Deleted task %s", taskID)
	return nil
}

// Patterns lists the scan formulas offered by the backend.
func (c *APIClient) Patterns(ctx context.Context) ([]model.Pattern, error) {
	req, err := c.newRequest(ctx, http.MethodGet, patternsPath, nil)
	if err != nil {
		return nil, err
	}

	var wire patternsJSON
	if err := c.doJSON(req, &wire); err != nil {
		return nil, fmt.Errorf("could not list patterns: %w", err)
	}

	patterns := make([]model.Pattern, 0, len(wire.Patterns))
	for _, p := range wire.Patterns {
		patterns = append(patterns, model.Pattern{
			Name:        p.Name,
			DisplayName: p.DisplayName,
			Description: p.Description,
			Category:    p.Category,
		})
	}

	return patterns, nil
}

// RunScan opens the scan event stream for a pattern.
func (c *APIClient) RunScan(ctx context.Context, patternID string) (io.ReadCloser, error) {
	if patternID == "" {
		return nil, fmt.Errorf("pattern is required: %w", model.ErrNotValid)
	}

	req, err := c.newRequest(ctx, http.MethodGet, scanRunPath+"?pattern="+url.QueryEscape(patternID), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not open scan stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := statusError(resp)
		resp.Body.Close()
		return nil, fmt.Errorf("could not open scan stream: %w", err)
	}

	return resp.Body, nil
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// doJSON executes a request and decodes a JSON body, mapping error statuses
// to the model sentinel errors.
func (c *APIClient) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("could not decode response: %w", err)
	}

	return nil
}

// statusError maps a non-2xx response to the error taxonomy.
func statusError(resp *http.Response) error {
	var wire errorJSON
	msg := ""
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&wire); err == nil {
		msg = wire.Error
		if msg == "" {
			msg = wire.Detail
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%s: %w", msg, model.ErrUnauthorized)
	case http.StatusPaymentRequired:
		return fmt.Errorf("%s: %w", msg, model.ErrInsufficientCredit)
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", msg, model.ErrNotFound)
	}

	return fmt.Errorf("backend returned status %d: %s", resp.StatusCode, msg)
}

func mapTask(wire taskJSON) model.Task {
	task := model.Task{
		ID:           wire.TaskID,
		SubjectCode:  wire.StockCode,
		SubjectName:  wire.StockName,
		Status:       model.TaskStatus(wire.Status),
		CompletedAt:  parseTimestamp(wire.CompletedAt),
		ErrorMessage: wire.ErrorMessage,
	}
	if wire.Status == "" {
		task.Status = model.TaskStatusPending
	}
	if t := parseTimestamp(wire.CreatedAt); t != nil {
		task.CreatedAt = *t
	}
	return task
}

// parseTimestamp parses the backend's ISO timestamps, returning nil for
// absent or unparseable values.
func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
