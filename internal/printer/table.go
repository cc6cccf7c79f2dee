package printer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/astrashare/astra/internal/model"
)

// TablePrinter prints task and scan information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintTaskList prints tasks in a table format.
func (t *TablePrinter) PrintTaskList(tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header
	fmt.Fprintln(tw, "ID\tSUBJECT\tNAME\tSTATUS\tCREATED")

	// Print rows
	for _, task := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", task.ID, task.SubjectCode, task.SubjectName, task.Status, TimeAgo(task.CreatedAt))
	}

	return nil
}

// PrintTaskDetail prints a task with its progress feed and, when the task is
// completed, the analysis result.
func (t *TablePrinter) PrintTaskDetail(task model.Task, progress []model.ProgressEntry, result string) error {
	fmt.Fprintf(t.writer, "ID:         %s\n", task.ID)
	fmt.Fprintf(t.writer, "Subject:    %s\n", task.SubjectCode)
	if task.SubjectName != "" {
		fmt.Fprintf(t.writer, "Name:       %s\n", task.SubjectName)
	}
	fmt.Fprintf(t.writer, "Status:     %s\n", task.Status)
	fmt.Fprintf(t.writer, "Created:    %s\n", FormatTimestamp(task.CreatedAt))

	if task.CompletedAt != nil {
		fmt.Fprintf(t.writer, "Completed:  %s\n", FormatTimestamp(*task.CompletedAt))
	}

	if task.ErrorMessage != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", task.ErrorMessage)
	}

	if len(progress) > 0 {
		fmt.Fprintf(t.writer, "\nProgress:\n")
		for _, entry := range progress {
			tag := entry.AgentTag
			if tag == "" {
				tag = "-"
			}
			ts := ""
			if entry.Timestamp != nil {
				ts = FormatTimestamp(*entry.Timestamp) + "  "
			}
			fmt.Fprintf(t.writer, "  %s[%s] %s\n", ts, tag, entry.Message)
		}
	}

	if result != "" {
		fmt.Fprintf(t.writer, "\nResult:\n%s\n", result)
	}

	return nil
}

// PrintMatchList prints scan matches in a table format with the final
// scanned counter.
func (t *TablePrinter) PrintMatchList(matches []model.ScanMatch, progress model.ScanProgress) error {
	if len(matches) > 0 {
		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)

		// Print header.
		fmt.Fprintln(tw, "SUBJECT\tNAME\tSIGNAL DATE\tBASE DATE")

		// Print rows.
		for _, m := range matches {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.SubjectCode, m.SubjectName, m.SignalDate, m.BaseDate)
		}

		tw.Flush()
	}

	fmt.Fprintf(t.writer, "\n%d matches out of %d scanned\n", len(matches), progress.Current)

	return nil
}

// PrintPatternList prints available scan patterns in a table format.
func (t *TablePrinter) PrintPatternList(patterns []model.Pattern) error {
	if len(patterns) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "NAME\tTITLE\tCATEGORY\tDESCRIPTION")

	// Print rows.
	for _, p := range patterns {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.DisplayName, p.Category, p.Description)
	}

	return nil
}

// PrintMessage prints a simple message.
func (t *TablePrinter) PrintMessage(msg string) error {
	_, err := fmt.Fprintln(t.writer, msg)
	return err
}
