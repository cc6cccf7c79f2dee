package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"

	"github.com/astrashare/astra/internal/app/history"
	"github.com/astrashare/astra/internal/backend"
	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/printer"
	"github.com/astrashare/astra/internal/registry"
)

type ListCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	statusFilter string
	limit        int
	format       string
}

// NewListCommand returns the list command.
func NewListCommand(rootCmd *RootCommand, app *kingpin.Application) *ListCommand {
	c := &ListCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("list", "List analysis tasks from the server history.")
	c.Cmd.Flag("status", "Filter by status (pending, running, completed, failed).").StringVar(&c.statusFilter)
	c.Cmd.Flag("limit", "Maximum number of tasks to list.").Default("20").IntVar(&c.limit)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ListCommand) Name() string { return c.Cmd.FullCommand() }

func (c ListCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Parse status filter if provided.
	var statusFilter *model.TaskStatus
	if c.statusFilter != "" {
		status := model.TaskStatus(strings.ToLower(c.statusFilter))
		// Validate status value.
		switch status {
		case model.TaskStatusPending, model.TaskStatusRunning, model.TaskStatusCompleted, model.TaskStatusFailed:
			statusFilter = &status
		default:
			return fmt.Errorf("invalid status filter: %s (must be: pending, running, completed, failed)", c.statusFilter)
		}
	}

	client, err := c.rootCmd.BackendClient()
	if err != nil {
		return err
	}

	reg, err := registry.NewRegistry(registry.RegistryConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create registry: %w", err)
	}

	svc, err := history.NewService(history.ServiceConfig{
		Backend:  client,
		Registry: reg,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	tasks, err := svc.Load(ctx, backend.HistoryOptions{
		Limit:  c.limit,
		Status: statusFilter,
	})
	if err != nil {
		return err
	}

	// Print output.
	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintTaskList(tasks); err != nil {
		return fmt.Errorf("could not print list: %w", err)
	}

	return nil
}
