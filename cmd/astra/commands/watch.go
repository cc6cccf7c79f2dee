package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/astrashare/astra/internal/app/history"
	"github.com/astrashare/astra/internal/backend"
	"github.com/astrashare/astra/internal/detail"
	"github.com/astrashare/astra/internal/notify"
	"github.com/astrashare/astra/internal/poller"
	"github.com/astrashare/astra/internal/printer"
	"github.com/astrashare/astra/internal/registry"
)

type WatchCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	followTaskID string
	interval     time.Duration
	limit        int
}

// NewWatchCommand returns the watch command.
func NewWatchCommand(rootCmd *RootCommand, app *kingpin.Application) *WatchCommand {
	c := &WatchCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("watch", "Poll in-flight tasks until all reach a terminal state.")
	c.Cmd.Flag("follow", "Task ID whose progress and result are fetched eagerly.").StringVar(&c.followTaskID)
	c.Cmd.Flag("interval", "Polling interval.").Default("3s").DurationVar(&c.interval)
	c.Cmd.Flag("limit", "Maximum number of history tasks to track.").Default("20").IntVar(&c.limit)

	return c
}

func (c WatchCommand) Name() string { return c.Cmd.FullCommand() }

func (c WatchCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	client, err := c.rootCmd.BackendClient()
	if err != nil {
		return err
	}

	reg, err := registry.NewRegistry(registry.RegistryConfig{Logger: logger})
	if err != nil {
		return fmt.Errorf("could not create registry: %w", err)
	}

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
	defer gate.Flush()

	var refresher *detail.Refresher
	if c.followTaskID != "" {
		refresher, err = detail.NewRefresher(detail.RefresherConfig{
			Backend:  client,
			Registry: reg,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("could not create refresher: %w", err)
		}
		refresher.Select(c.followTaskID)
	}

	pollerCfg := poller.PollerConfig{
		Backend:  client,
		Registry: reg,
		Gate:     gate,
		Interval: c.interval,
		Logger:   logger,
	}
	if refresher != nil {
		pollerCfg.Detail = refresher
	}
	pol, err := poller.NewPoller(pollerCfg)
	if err != nil {
		return fmt.Errorf("could not create poller: %w", err)
	}

	svc, err := history.NewService(history.ServiceConfig{
		Backend:  client,
		Registry: reg,
		Poller:   pol,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if _, err := svc.Load(ctx, backend.HistoryOptions{Limit: c.limit}); err != nil {
		return err
	}

	if !pol.Active() {
		fmt.Fprintln(c.rootCmd.Stdout, "No tasks in flight")
		return nil
	}

	fmt.Fprintln(c.rootCmd.Stdout, "Watching tasks, press Ctrl+C to stop")

	var g run.Group

	// Wait for the poller to drain or the context to be cancelled.
	{
		g.Add(
			func() error {
				select {
				case <-pol.Done():
				case <-ctx.Done():
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	if err := g.Run(); err != nil {
		return err
	}

	// Wait for queued notification writes before printing the summary.
	gate.Flush()

	tasks, err := reg.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("could not list tasks: %w", err)
	}

	p := printer.NewTablePrinter(c.rootCmd.Stdout)
	if err := p.PrintTaskList(tasks); err != nil {
		return fmt.Errorf("could not print list: %w", err)
	}

	if refresher != nil {
		projection := refresher.Current()
		if projection.Result != "" {
			fmt.Fprintf(c.rootCmd.Stdout, "\nResult for %s:\n%s\n", c.followTaskID, projection.Result)
		}
	}

	return nil
}
