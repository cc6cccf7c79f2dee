package backend

import (
	"context"
	"io"

	"github.com/astrashare/astra/internal/model"
)

// Client is the boundary with the analysis backend. The analysis pipeline
// itself is opaque; this is only its task/status/result/stream contract.
type Client interface {
	// SubmitAnalysis creates a new analysis task for a subject code and
	// returns the canonical task assigned by the server.
	SubmitAnalysis(ctx context.Context, subjectCode string) (*model.Task, error)

	// TaskState returns the current status and progress log of a task.
	TaskState(ctx context.Context, taskID string) (*model.TaskState, error)

	// TaskResult returns the final report body of a completed task.
	TaskResult(ctx context.Context, taskID string) (string, error)

	// History returns all tasks owned by the authenticated caller.
	History(ctx context.Context, opts HistoryOptions) ([]model.Task, error)

	// DeleteTask removes a task server-side. Any 2xx is success.
	DeleteTask(ctx context.Context, taskID string) error

	// Patterns lists the scan formulas offered by the backend.
	Patterns(ctx context.Context) ([]model.Pattern, error)

	// RunScan opens the scan event stream for a pattern. The returned body
	// stays open until the scan finishes or ctx is cancelled.
	RunScan(ctx context.Context, patternID string) (io.ReadCloser, error)
}

// HistoryOptions are the optional filters for History.
type HistoryOptions struct {
	// Limit caps the number of returned tasks. Zero means server default.
	Limit int
	// Status restricts the listing to one status.
	Status *model.TaskStatus
}
