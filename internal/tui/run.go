package tui

import (
	"context"
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/dosewatch/internal/model"
)

// Run shows the dashboard until the user quits or ctx is done. Detection is
// stopped before Run returns.
func Run(ctx context.Context, dash Dashboard, opts ...Option) error {
	if dash == nil {
		return fmt.Errorf("dashboard is required")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if cfg.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	p := tea.NewProgram(newModel(ctx, dash, cfg), programOpts...)
	dash.OnAlert(func(model.AlertState, bool) {
		p.Send(alertChangedMsg{})
	})
	defer dash.OnAlert(nil)

	if cfg.bridge != nil {
		cfg.bridge.attach(p)
		defer cfg.bridge.detach()
	}

	_, err := p.Run()
	if stopErr := dash.StopDetection(); stopErr != nil && err == nil {
		err = stopErr
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}
