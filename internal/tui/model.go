// Package tui is a terminal renderer for an explorer session.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/fraudviz/internal/explorer"
	"github.com/leapstack-labs/fraudviz/internal/notifier"
	"github.com/leapstack-labs/fraudviz/internal/view"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// commitMsg reports a snapshot commit from the loader.
type commitMsg struct{}

// changeMsg reports a background session change, such as a finished
// relationship lookup.
type changeMsg struct{}

// resultMsg carries the outcome of an asynchronous command.
type resultMsg struct {
	err error
}

// Model implements tea.Model over one explorer session.
type Model struct {
	ctx     context.Context
	session *explorer.Session
	commits chan notifier.Event
	changes chan notifier.Event

	render    view.RenderModel
	state     explorer.State
	cursor    int
	search    textinput.Model
	searching bool
	loading   bool
	err       error

	width  int
	height int
}

// NewModel creates a model for s. commits may be nil when live reload
// notifications are not wanted. Close releases the model's session
// subscription.
func NewModel(ctx context.Context, s *explorer.Session, commits chan notifier.Event) Model {
	ti := textinput.New()
	ti.Placeholder = "name, email or id"
	ti.Prompt = "/ "
	ti.CharLimit = 128

	m := Model{
		ctx:     ctx,
		session: s,
		commits: commits,
		changes: s.Subscribe(),
		search:  ti,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForCommit(), m.waitForChange())
}

func (m Model) waitForCommit() tea.Cmd {
	if m.commits == nil {
		return nil
	}
	ch := m.commits
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return commitMsg{}
	}
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return changeMsg{}
	}
}

// Close unsubscribes the model from session changes.
func (m Model) Close() {
	m.session.Unsubscribe(m.changes)
}

// refresh re-reads the session after anything changed it.
func (m *Model) refresh() {
	m.render = m.session.Render()
	m.state = m.session.State()
	if m.cursor >= len(m.render.Nodes) {
		m.cursor = max(len(m.render.Nodes)-1, 0)
	}
}

func (m *Model) apply(cmd explorer.Command) {
	_, m.err = m.session.Apply(m.ctx, cmd)
	m.refresh()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.search.Width = max(msg.Width/3, 20)
		return m, nil

	case tea.KeyMsg:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		return m.handleKey(msg)

	case commitMsg:
		m.refresh()
		return m, m.waitForCommit()

	case changeMsg:
		m.refresh()
		return m, m.waitForChange()

	case resultMsg:
		m.loading = false
		m.err = msg.err
		m.refresh()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		next := core.ViewFraud
		if m.state.Mode == core.ViewFraud {
			next = core.ViewTransactions
		}
		m.apply(explorer.SwitchView{Mode: next})
		m.cursor = 0

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.render.Nodes)-1 {
			m.cursor++
		}

	case "enter":
		if len(m.render.Nodes) > 0 {
			m.apply(explorer.SelectNode{ID: m.render.Nodes[m.cursor].ID})
		}

	case "/":
		m.searching = true
		m.search.SetValue(m.state.Query)
		return m, m.search.Focus()

	case "esc":
		m.apply(explorer.Reset{})

	case "r":
		if m.loading {
			return m, nil
		}
		m.loading = true
		s, ctx := m.session, m.ctx
		return m, func() tea.Msg {
			_, err := s.Apply(ctx, explorer.Reload{})
			return resultMsg{err: err}
		}
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		m.apply(explorer.Search{Text: m.search.Value()})
		return m, nil
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

// Err returns the error of the last command, if any.
func (m Model) Err() error {
	return m.err
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Fraud Graph Explorer"))
	b.WriteString("  ")
	for _, mode := range []core.ViewMode{core.ViewTransactions, core.ViewFraud} {
		style := tabStyle
		if mode == m.render.Mode {
			style = activeTabStyle
		}
		b.WriteString(style.Render(string(mode)))
		b.WriteString(" ")
	}
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(fmt.Sprintf("users %d · transactions %d · relationships %d",
		m.render.Stats.Users, m.render.Stats.Transactions, m.render.Stats.Relationships)))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		paneStyle.Render(m.nodeList()),
		paneStyle.Render(m.details()),
	))
	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m Model) nodeList() string {
	if m.render.Empty() {
		return mutedStyle.Render("No graph loaded yet.")
	}

	var b strings.Builder
	b.WriteString(headingStyle.Render("Nodes"))
	b.WriteString("\n")
	for i, n := range m.render.Nodes {
		marker := "  "
		if i == m.cursor {
			marker = selectedMarker
		}
		label := n.Label
		if label != n.ID {
			label = fmt.Sprintf("%s (%s)", n.Label, n.ID)
		}
		b.WriteString(marker)
		b.WriteString(nodeStyle(n.Type, n.State).Render(label))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) details() string {
	var b strings.Builder
	switch {
	case m.state.Selected != "":
		b.WriteString(headingStyle.Render("Selected " + m.state.Selected))
		b.WriteString("\n")
		switch {
		case m.state.RelationshipsErr != nil:
			b.WriteString(mutedStyle.Render("relationships unavailable: " + m.state.RelationshipsErr.Error()))
		case m.state.Relationships == nil:
			b.WriteString(mutedStyle.Render("loading relationships…"))
		default:
			groups := explorer.RelationshipGroups(m.state.Relationships)
			if len(groups) == 0 {
				b.WriteString(mutedStyle.Render("no connections"))
			}
			for _, g := range groups {
				fmt.Fprintf(&b, "%s: %s\n", g.Title, strings.Join(g.IDs, ", "))
			}
		}
	case m.state.Query != "":
		fmt.Fprintf(&b, "%d nodes match %q", m.render.Count(view.Highlighted), m.state.Query)
	default:
		b.WriteString(mutedStyle.Render("enter selects · / searches"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) footer() string {
	switch {
	case m.searching:
		return m.search.View()
	case m.loading:
		return mutedStyle.Render("reloading…")
	case m.render.Status != "":
		return errorStyle.Render(m.render.Status)
	}
	return helpStyle.Render("tab view · ↑/↓ move · enter select · / search · esc reset · r reload · q quit")
}
