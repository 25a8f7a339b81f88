package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/fraudviz/internal/view"
)

// Styles are the lipgloss styles used for text output.
type Styles struct {
	Header1     lipgloss.Style
	Header2     lipgloss.Style
	Bold        lipgloss.Style
	Muted       lipgloss.Style
	Key         lipgloss.Style
	Success     lipgloss.Style
	Warning     lipgloss.Style
	Error       lipgloss.Style
	User        lipgloss.Style
	Transaction lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1:     r.NewStyle().Bold(true).Foreground(lipgloss.Color(view.UserColor)).MarginBottom(1),
		Header2:     r.NewStyle().Bold(true).Underline(true),
		Bold:        r.NewStyle().Bold(true),
		Muted:       r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		Key:         r.NewStyle().Foreground(lipgloss.Color("#94a3b8")),
		Success:     r.NewStyle().Foreground(lipgloss.Color("#10B981")),
		Warning:     r.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
		Error:       r.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
		User:        r.NewStyle().Foreground(lipgloss.Color(view.UserColor)),
		Transaction: r.NewStyle().Foreground(lipgloss.Color(view.TransactionColor)),
	}
}
