package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/partyq/internal/models"
	"github.com/desertthunder/partyq/internal/shared"
	"github.com/desertthunder/partyq/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/partyq-tui.log"

// TUI launches the interactive terminal UI on the event list.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	return r.runTUI(ctx, ui.Options{UserID: cmd.String("owner"), View: models.ViewManager})
}

// QueueWatch follows a single event's queue in the terminal UI.
func (r *Runner) QueueWatch(ctx context.Context, cmd *cli.Command) error {
	id, err := requiredArg(cmd, "id")
	if err != nil {
		return err
	}
	view, err := parseView(cmd)
	if err != nil {
		return err
	}

	if err := r.redirectLogs(); err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	event, err := r.engine.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	return r.runTUI(ctx, ui.Options{UserID: cmd.String("owner"), Event: event, View: view})
}

// redirectLogs sends logs to a file to avoid interfering with TUI rendering.
//
// Must run before [Runner.open] so the engine logs there too.
func (r *Runner) redirectLogs() error {
	if r.engine != nil {
		return nil
	}
	fileLogger, err := shared.NewFileLogger(tuiLogPath)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)
	return nil
}

func (r *Runner) runTUI(ctx context.Context, opts ui.Options) error {
	if err := r.redirectLogs(); err != nil {
		return err
	}
	if err := r.open(ctx); err != nil {
		return err
	}

	opts.PollInterval = r.config.Queue.PollInterval.Duration
	model := ui.NewModel(ctx, r.engine, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
