package printer

import "github.com/astrashare/astra/internal/model"

// Printer knows how to print task and scan information in different formats.
type Printer interface {
	PrintTaskList(tasks []model.Task) error
	PrintTaskDetail(task model.Task, progress []model.ProgressEntry, result string) error
	PrintMatchList(matches []model.ScanMatch, progress model.ScanProgress) error
	PrintPatternList(patterns []model.Pattern) error
	PrintMessage(msg string) error
}
