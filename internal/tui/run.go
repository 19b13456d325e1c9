package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robottwo/neurodx/internal/session"
	"go.uber.org/zap"
)

// Run shows the interactive view until the user quits or ctx is done.
func Run(ctx context.Context, ctrl *session.Controller, logger *zap.Logger) error {
	defer ctrl.Close()

	p := tea.NewProgram(
		initialModel(ctx, ctrl, logger),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
