package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/astrashare/astra/internal/app/remove"
	"github.com/astrashare/astra/internal/registry"
)

type RemoveCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID string
}

// NewRemoveCommand returns the remove command.
func NewRemoveCommand(rootCmd *RootCommand, app *kingpin.Application) *RemoveCommand {
	c := &RemoveCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("rm", "Delete an analysis task.")
	c.Cmd.Arg("task-id", "Task ID.").Required().StringVar(&c.taskID)

	return c
}

func (c RemoveCommand) Name() string { return c.Cmd.FullCommand() }

func (c RemoveCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	client, err := c.rootCmd.BackendClient()
	if err != nil {
		return err
	}

	reg, err := registry.NewRegistry(registry.RegistryConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create registry: %w", err)
	}

	svc, err := remove.NewService(remove.ServiceConfig{
		Backend:  client,
		Registry: reg,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	if err := svc.Remove(ctx, c.taskID); err != nil {
		return err
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Task %s deleted\n", c.taskID)

	return nil
}
