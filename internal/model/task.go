package model

import (
	"time"
)

// TaskStatus represents the state of an analysis task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task is queued and not picked up yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusRunning indicates the analysis pipeline is working on the task.
	TaskStatusRunning TaskStatus = "running"
	// TaskStatusCompleted indicates the task finished and a report is available.
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusFailed indicates the task finished with an error.
	TaskStatusFailed TaskStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Task represents one submitted, server-executed analysis job.
type Task struct {
	ID           string
	SubjectCode  string
	SubjectName  string
	Status       TaskStatus
	CreatedAt    time.Time
	CompletedAt  *time.Time
	ErrorMessage string
}

// ProgressEntry is one line of a task's execution log. The server owns the
// list; clients replace their local copy wholesale on every refresh.
type ProgressEntry struct {
	Message   string
	AgentTag  string
	Timestamp *time.Time
}

// TaskState is the status snapshot the backend returns for a single task.
type TaskState struct {
	Status       TaskStatus
	SubjectName  string
	CompletedAt  *time.Time
	ErrorMessage string
	Progress     []ProgressEntry
}
