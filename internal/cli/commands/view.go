package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/fraudviz/internal/cli/output"
	"github.com/leapstack-labs/fraudviz/internal/view"
)

// ViewOptions holds options for the view command.
type ViewOptions struct {
	Select string
	Search string
}

// NewViewCommand creates the view command.
func NewViewCommand() *cobra.Command {
	opts := &ViewOptions{}

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Print the render model of a view",
		Long: `Partition the current snapshot into the selected view and print every
visible node and edge with its highlight state.

--select highlights a node and its neighbours; --search highlights
matching nodes and their neighbours. JSON output is the exact model the
browser explorer draws.`,
		Example: `  # Fraud view with Bob's neighbourhood highlighted
  fraudviz view --view fraud --select u2

  # Render model as JSON
  fraudviz view --search alice --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runView(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Select, "select", "", "Node id to highlight")
	cmd.Flags().StringVar(&opts.Search, "search", "", "Search text to highlight")
	cmd.MarkFlagsMutuallyExclusive("select", "search")

	return cmd
}

func runView(cmd *cobra.Command, opts *ViewOptions) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := cc.Prime(cmd.Context()); err != nil {
		return err
	}

	v, err := view.Partition(cc.Loader.Snapshot(), cc.Cfg.View())
	if err != nil {
		return err
	}

	h := view.Clear()
	switch {
	case opts.Select != "":
		if h, err = view.Select(v, opts.Select); err != nil {
			return fmt.Errorf("select %s: %w", opts.Select, err)
		}
	case opts.Search != "":
		h = view.Search(v, opts.Search)
	}

	return renderModel(cc.Renderer, v.Render(h))
}

func renderModel(r *output.Renderer, m view.RenderModel) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(m)
	}
	if m.Empty() {
		return errors.New("nothing to show in this view")
	}

	r.Header(1, fmt.Sprintf("%s view", m.Mode))
	if m.Highlight != view.CauseNone {
		r.Printf("%s %q: %d highlighted\n\n", m.Highlight, m.Focus, m.Count(view.Highlighted))
	}

	styles := r.Styles()
	nodes := make([][]any, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		label := n.Label
		if r.EffectiveMode() == output.ModeText && n.State == view.Highlighted {
			label = styles.Bold.Render(label)
		}
		nodes = append(nodes, []any{n.ID, label, n.Type, n.State})
	}
	r.Header(2, "Nodes")
	r.Table([]string{"ID", "Label", "Type", "State"}, nodes)

	edges := make([][]any, 0, len(m.Edges))
	for _, e := range m.Edges {
		edges = append(edges, []any{e.Source, e.Type, e.Target, e.State})
	}
	r.Header(2, "Edges")
	r.Table([]string{"Source", "Type", "Target", "State"}, edges)
	return nil
}
