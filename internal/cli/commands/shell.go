package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/fraudviz/internal/explorer"
	"github.com/leapstack-labs/fraudviz/internal/view"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

const shellPrompt = "fraudviz> "

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive explorer REPL",
		Long: `Start a line-oriented explorer session.

Type .help for commands, .quit to exit.`,
		Example: `  fraudviz shell
  fraudviz> view fraud
  fraudviz> search bob
  fraudviz> select u2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd)
		},
	}
}

func runShell(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cc.Prime(ctx); err != nil {
		return err
	}

	s := explorer.NewSession(uuid.NewString(), cc.Loader, explorer.Options{
		Mode:    cc.Cfg.View(),
		Metrics: cc.Metrics,
		Logger:  cc.Logger,
	})
	defer s.Wait()

	// Setup history file next to the snapshot history
	var historyFile string
	if cc.Cfg.StatePath != "" && cc.Cfg.StatePath != ":memory:" {
		historyFile = filepath.Join(filepath.Dir(cc.Cfg.StatePath), "shell_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    newShellCompleter(nodeIDs(cc.Loader.Snapshot())),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "fraudviz shell (source: %s)\n", cc.Source.Name())
	_, _ = fmt.Fprintln(out, "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(out)
	printFrame(out, s)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if quit := runShellLine(ctx, out, cmd.ErrOrStderr(), s, line); quit {
			break
		}
	}
	return nil
}

// runShellLine executes one REPL line and reports whether the shell should exit.
func runShellLine(ctx context.Context, out, errOut io.Writer, s *explorer.Session, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	switch strings.ToLower(line) {
	case ".quit", ".exit":
		return true
	case ".help":
		printShellHelp(out)
		return false
	case "show":
		printFrame(out, s)
		return false
	}

	cmd, err := explorer.ParseCommand(line)
	if err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		return false
	}
	if _, err := s.Apply(ctx, cmd); err != nil {
		_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		return false
	}
	if _, ok := cmd.(explorer.SelectNode); ok {
		// wait for the relationship lookup so it prints with the frame
		s.Wait()
	}
	printFrame(out, s)
	return false
}

func printShellHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Commands:")
	for _, c := range explorer.CommandHelp {
		_, _ = fmt.Fprintf(w, "  %-28s %s\n", c.Usage, c.Description)
	}
	_, _ = fmt.Fprintf(w, "  %-28s %s\n", "show", "print the current view")
	_, _ = fmt.Fprintf(w, "  %-28s %s\n", ".help", "show this help")
	_, _ = fmt.Fprintf(w, "  %-28s %s\n", ".quit", "exit the shell")
}

// printFrame prints the session's view in plain text.
func printFrame(w io.Writer, s *explorer.Session) {
	m := s.Render()
	st := s.State()

	if m.Status != "" {
		_, _ = fmt.Fprintf(w, "status: %s\n", m.Status)
	}
	if m.Empty() {
		_, _ = fmt.Fprintln(w, "No graph loaded yet.")
		return
	}

	_, _ = fmt.Fprintf(w, "%s view: %d users, %d transactions, %d relationships\n",
		m.Mode, m.Stats.Users, m.Stats.Transactions, m.Stats.Relationships)

	switch m.Highlight {
	case view.CauseSelect:
		_, _ = fmt.Fprintf(w, "selected %s: %s\n", m.Focus, strings.Join(highlightedIDs(m), ", "))
	case view.CauseSearch:
		_, _ = fmt.Fprintf(w, "search %q: %s\n", m.Focus, strings.Join(highlightedIDs(m), ", "))
	}

	if st.Selected == "" {
		return
	}
	switch {
	case st.RelationshipsErr != nil:
		_, _ = fmt.Fprintf(w, "relationships unavailable: %v\n", st.RelationshipsErr)
	case st.Relationships != nil:
		for _, g := range explorer.RelationshipGroups(st.Relationships) {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", g.Title, strings.Join(g.IDs, ", "))
		}
	}
}

func highlightedIDs(m view.RenderModel) []string {
	var ids []string
	for _, n := range m.Nodes {
		if n.State == view.Highlighted {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func nodeIDs(snap *core.Snapshot) []string {
	if snap == nil {
		return nil
	}
	ids := make([]string, 0, len(snap.Nodes))
	for _, n := range snap.Nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

// newShellCompleter completes command verbs and node ids.
func newShellCompleter(ids []string) *readline.PrefixCompleter {
	idItems := make([]readline.PrefixCompleterInterface, 0, len(ids))
	for _, id := range ids {
		idItems = append(idItems, readline.PcItem(id))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("select", idItems...),
		readline.PcItem("view", readline.PcItem("transactions"), readline.PcItem("fraud")),
		readline.PcItem("search"),
		readline.PcItem("reset"),
		readline.PcItem("reload"),
		readline.PcItem("show"),
		readline.PcItem(".help"),
		readline.PcItem(".quit"),
	)
}
