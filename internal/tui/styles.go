package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/fraudviz/internal/view"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

var (
	primaryColor   = lipgloss.Color(view.UserColor)
	accentColor    = lipgloss.Color("#fbbf24")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	inactiveColor  = lipgloss.Color("#94a3b8")
	textColor      = lipgloss.Color("#F9FAFB")
	userColor      = lipgloss.Color(view.UserColor)
	txnColor       = lipgloss.Color(view.TransactionColor)
	selectedMarker = "▶ "

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	activeTabStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(primaryColor).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(inactiveColor).
			Padding(0, 1)

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(inactiveColor).
			Padding(0, 1)

	headingStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)
)

// nodeStyle colours a node by type and dims or emphasises it by state.
func nodeStyle(t core.NodeType, s view.State) lipgloss.Style {
	color := userColor
	if t == core.NodeTransaction {
		color = txnColor
	}
	style := lipgloss.NewStyle().Foreground(color)
	switch s {
	case view.Highlighted:
		return style.Bold(true).Underline(true).Foreground(accentColor)
	case view.Faded:
		return style.Faint(true).Foreground(mutedColor)
	default:
		return style
	}
}
