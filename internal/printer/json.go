package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/astrashare/astra/internal/model"
)

// JSONPrinter prints task and scan information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// taskItem represents a task in the list output (subset of fields).
type taskItem struct {
	ID          string    `json:"id"`
	SubjectCode string    `json:"subject_code"`
	SubjectName string    `json:"subject_name,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// taskDetailOutput represents the full task detail output.
type taskDetailOutput struct {
	ID           string          `json:"id"`
	SubjectCode  string          `json:"subject_code"`
	SubjectName  string          `json:"subject_name,omitempty"`
	Status       string          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Progress     []progressPoint `json:"progress"`
	Result       string          `json:"result,omitempty"`
}

// progressPoint represents one progress feed entry.
type progressPoint struct {
	Message   string     `json:"message"`
	AgentTag  string     `json:"agent,omitempty"`
	Timestamp *time.Time `json:"timestamp"`
}

// matchListOutput represents the final scan output.
type matchListOutput struct {
	Matches []matchItem `json:"matches"`
	Scanned int         `json:"scanned"`
	Total   int         `json:"total"`
}

// matchItem represents one scan match.
type matchItem struct {
	SubjectCode string                 `json:"subject_code"`
	SubjectName string                 `json:"subject_name"`
	BaseDate    string                 `json:"base_date,omitempty"`
	SignalDate  string                 `json:"signal_date,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// patternItem represents one scan pattern.
type patternItem struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintTaskList prints tasks in JSON format with a subset of fields.
func (j *JSONPrinter) PrintTaskList(tasks []model.Task) error {
	items := make([]taskItem, len(tasks))
	for i, t := range tasks {
		items[i] = taskItem{
			ID:          t.ID,
			SubjectCode: t.SubjectCode,
			SubjectName: t.SubjectName,
			Status:      string(t.Status),
			CreatedAt:   t.CreatedAt.UTC(),
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// PrintTaskDetail prints the full task detail in JSON format.
func (j *JSONPrinter) PrintTaskDetail(task model.Task, progress []model.ProgressEntry, result string) error {
	output := taskDetailOutput{
		ID:           task.ID,
		SubjectCode:  task.SubjectCode,
		SubjectName:  task.SubjectName,
		Status:       string(task.Status),
		CreatedAt:    task.CreatedAt.UTC(),
		ErrorMessage: task.ErrorMessage,
		Progress:     make([]progressPoint, 0, len(progress)),
		Result:       result,
	}

	if task.CompletedAt != nil {
		utcTime := task.CompletedAt.UTC()
		output.CompletedAt = &utcTime
	}

	for _, entry := range progress {
		p := progressPoint{Message: entry.Message, AgentTag: entry.AgentTag}
		if entry.Timestamp != nil {
			utcTime := entry.Timestamp.UTC()
			p.Timestamp = &utcTime
		}
		output.Progress = append(output.Progress, p)
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// PrintMatchList prints scan matches in JSON format.
func (j *JSONPrinter) PrintMatchList(matches []model.ScanMatch, progress model.ScanProgress) error {
	output := matchListOutput{
		Matches: make([]matchItem, 0, len(matches)),
		Scanned: progress.Current,
		Total:   progress.Total,
	}

	for _, m := range matches {
		output.Matches = append(output.Matches, matchItem{
			SubjectCode: m.SubjectCode,
			SubjectName: m.SubjectName,
			BaseDate:    m.BaseDate,
			SignalDate:  m.SignalDate,
			Details:     m.Details,
		})
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// PrintPatternList prints scan patterns in JSON format.
func (j *JSONPrinter) PrintPatternList(patterns []model.Pattern) error {
	items := make([]patternItem, len(patterns))
	for i, p := range patterns {
		items[i] = patternItem{
			Name:        p.Name,
			DisplayName: p.DisplayName,
			Category:    p.Category,
			Description: p.Description,
		}
	}

	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(items)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	output := messageOutput{Message: msg}
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}
