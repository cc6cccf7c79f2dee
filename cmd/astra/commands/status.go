package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/astrashare/astra/internal/detail"
	"github.com/astrashare/astra/internal/printer"
	"github.com/astrashare/astra/internal/registry"
)

type StatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
	format string
}

// NewStatusCommand returns the status command.
func NewStatusCommand(rootCmd *RootCommand, app *kingpin.Application) *StatusCommand {
	c := &StatusCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("status", "Show the state, progress and result of a task.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c StatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c StatusCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	client, err := c.rootCmd.BackendClient()
	if err != nil {
		return err
	}

	reg, err := registry.NewRegistry(registry.RegistryConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create registry: %w", err)
	}

	refresher, err := detail.NewRefresher(detail.RefresherConfig{
		Backend:  client,
		Registry: reg,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create refresher: %w", err)
	}

	refresher.Select(c.taskID)
	if err := refresher.Refresh(ctx, c.taskID); err != nil {
		return fmt.Errorf("could not refresh task: %w", err)
	}

	task, err := reg.Get(ctx, c.taskID)
	if err != nil {
		return fmt.Errorf("could not get task: %w", err)
	}
	projection := refresher.Current()

	// Print output.
	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintTaskDetail(*task, projection.Progress, projection.Result); err != nil {
		return fmt.Errorf("could not print task: %w", err)
	}

	return nil
}
