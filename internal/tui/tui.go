package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/leapstack-labs/fraudviz/internal/explorer"
	"github.com/leapstack-labs/fraudviz/internal/loader"
)

// Run drives s in the terminal until the user quits or ctx is cancelled.
func Run(ctx context.Context, s *explorer.Session, l *loader.Loader) error {
	commits := l.Notifier().Subscribe()
	defer l.Notifier().Unsubscribe(commits)

	m := NewModel(ctx, s, commits)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("tui: %w", err)
	}
	s.Wait()
	return nil
}
