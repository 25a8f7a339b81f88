package commands

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/fraudviz/internal/explorer"
	"github.com/leapstack-labs/fraudviz/internal/tui"
)

// NewTUICommand creates the tui command.
func NewTUICommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Explore the graph in the terminal",
		Long: `Open a full-screen terminal explorer.

Keys:
  tab        switch between transaction and fraud view
  ↑/↓ j/k    move through the node list
  enter      select the node under the cursor
  /          search (enter applies, esc cancels)
  esc        clear the highlight
  r          reload from the source
  q          quit`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cc.Prime(cmd.Context()); err != nil {
				return err
			}

			s := explorer.NewSession(uuid.NewString(), cc.Loader, explorer.Options{
				Mode:    cc.Cfg.View(),
				Metrics: cc.Metrics,
				Logger:  cc.Logger,
			})
			return tui.Run(cmd.Context(), s, cc.Loader)
		},
	}
}
