package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/astrashare/astra/internal/app/submit"
	"github.com/astrashare/astra/internal/registry"
)

type SubmitCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	subjectCode string
}

// NewSubmitCommand returns the submit command.
func NewSubmitCommand(rootCmd *RootCommand, app *kingpin.Application) *SubmitCommand {
	c := &SubmitCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("submit", "Submit a subject for asynchronous analysis.")
	c.Cmd.Arg("subject-code", "Subject code to analyze (e.g. 005930).").Required().StringVar(&c.subjectCode)

	return c
}

func (c SubmitCommand) Name() string { return c.Cmd.FullCommand() }

func (c SubmitCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	client, err := c.rootCmd.BackendClient()
	if err != nil {
		return err
	}

	reg, err := registry.NewRegistry(registry.RegistryConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create registry: %w", err)
	}

	svc, err := submit.NewService(submit.ServiceConfig{
		Backend:  client,
		Registry: reg,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	task, err := svc.Submit(ctx, c.subjectCode)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Analysis submitted: %s\n", task.ID)
	fmt.Fprintf(c.rootCmd.Stdout, "Track it with: astra status %s\n", task.ID)

	return nil
}
