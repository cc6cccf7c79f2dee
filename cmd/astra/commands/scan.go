package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/astrashare/astra/internal/model"
	"github.com/astrashare/astra/internal/printer"
	"github.com/astrashare/astra/internal/scan"
)

// NewScanCommand returns the parent command for the scan subcommands.
func NewScanCommand(app *kingpin.Application) *kingpin.CmdClause {
	return app.Command("scan", "Run pattern scans over the whole market.")
}

type ScanRunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	pattern string
	format  string
}

// NewScanRunCommand returns the scan run command.
func NewScanRunCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ScanRunCommand {
	c := &ScanRunCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("run", "Stream a pattern scan and print the matches.")
	c.Cmd.Arg("pattern", "Pattern name to scan for.").Required().StringVar(&c.pattern)
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ScanRunCommand) Name() string { return c.Cmd.FullCommand() }

func (c ScanRunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	client, err := c.rootCmd.BackendClient()
	if err != nil {
		return err
	}

	cfg := scan.SessionConfig{
		Backend: client,
		Logger:  logger,
	}
	// Live feedback only makes sense on the table format, JSON output must
	// stay a single document.
	if c.format == "table" {
		cfg.OnMatch = func(m model.ScanMatch) {
			fmt.Fprintf(c.rootCmd.Stdout, "match: %s %s (%s)\n", m.SubjectCode, m.SubjectName, m.SignalDate)
		}
	}

	session, err := scan.NewSession(cfg)
	if err != nil {
		return fmt.Errorf("could not create scan session: %w", err)
	}

	if err := session.Start(ctx, c.pattern); err != nil {
		return fmt.Errorf("scan run %s: %w", session.RunID(), err)
	}

	if c.format == "table" {
		fmt.Fprintf(c.rootCmd.Stdout, "Scan run %s %s\n", session.RunID(), session.State())
		if session.State() == scan.StateCancelled {
			fmt.Fprintln(c.rootCmd.Stdout, "Partial results:")
		}
	}

	// Print output.
	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintMatchList(session.Matches(), session.Progress()); err != nil {
		return fmt.Errorf("could not print matches: %w", err)
	}

	return nil
}

type ScanPatternsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format string
}

// NewScanPatternsCommand returns the scan patterns command.
func NewScanPatternsCommand(rootCmd *RootCommand, parent *kingpin.CmdClause) *ScanPatternsCommand {
	c := &ScanPatternsCommand{rootCmd: rootCmd}

	c.Cmd = parent.Command("patterns", "List the patterns available for scanning.")
	c.Cmd.Flag("format", "Output format (table, json).").Default("table").EnumVar(&c.format, "table", "json")

	return c
}

func (c ScanPatternsCommand) Name() string { return c.Cmd.FullCommand() }

func (c ScanPatternsCommand) Run(ctx context.Context) error {
	client, err := c.rootCmd.BackendClient()
	if err != nil {
		return err
	}

	patterns, err := client.Patterns(ctx)
	if err != nil {
		return fmt.Errorf("could not list patterns: %w", err)
	}

	// Print output.
	var p printer.Printer
	switch c.format {
	case "json":
		p = printer.NewJSONPrinter(c.rootCmd.Stdout)
	default: // table
		p = printer.NewTablePrinter(c.rootCmd.Stdout)
	}

	if err := p.PrintPatternList(patterns); err != nil {
		return fmt.Errorf("could not print patterns: %w", err)
	}

	return nil
}
