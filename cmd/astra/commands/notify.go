package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/astrashare/astra/internal/notify"
)

// NewNotifyCommand returns the parent command for the notify subcommands.
func NewNotifyCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("notify", "Manage completion notifications.")
}

type NotifySetCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	permission notify.Permission
}

// NewNotifyEnableCommand returns the notify enable command.
func NewNotifyEnableCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *NotifySetCommand {
	c := &NotifySetCommand{rootCmd: rootCmd, permission: notify.PermissionGranted}
	c.Cmd = parent.Command("enable", "Allow completion notifications.")
	return c
}

// NewNotifyDisableCommand returns the notify disable command.
func NewNotifyDisableCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *NotifySetCommand {
	c := &NotifySetCommand{rootCmd: rootCmd, permission: notify.PermissionDenied}
	c.Cmd = parent.Command("disable", "Silence completion notifications.")
	return c
}

func (c NotifySetCommand) Name() string { return c.Cmd.FullCommand() }

func (c NotifySetCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, closeRepo, err := c.rootCmd.Repository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	gate, err := notify.NewGate(ctx, notify.GateConfig{
		Repository: repo,
		Notifier:   notify.NewWriterNotifier(c.rootCmd.Stdout),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create notification gate: %w", err)
	}

	if err := gate.SetPermission(ctx, c.permission); err != nil {
		return fmt.Errorf("could not set notification permission: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Notification permission set to %s\n", c.permission)

	return nil
}

type NotifyStatusCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewNotifyStatusCommand returns the notify status command.
func NewNotifyStatusCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *NotifyStatusCommand {
	c := &NotifyStatusCommand{rootCmd: rootCmd}
	c.Cmd = parent.Command("status", "Show the notification permission.")
	return c
}

func (c NotifyStatusCommand) Name() string { return c.Cmd.FullCommand() }

func (c NotifyStatusCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	repo, closeRepo, err := c.rootCmd.Repository(ctx)
	if err != nil {
		return err
	}
	defer closeRepo()

	gate, err := notify.NewGate(ctx, notify.GateConfig{
		Repository: repo,
		Notifier:   notify.NewWriterNotifier(c.rootCmd.Stdout),
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create notification gate: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Notification permission: %s\n", gate.Permission())

	return nil
}
