package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/fraudviz/internal/cli/output"
	"github.com/leapstack-labs/fraudviz/internal/state"
)

// NewSnapshotsCommand creates the snapshots command and its subcommands.
func NewSnapshotsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshots",
		Short: "Inspect and prune the stored snapshot history",
		Long: `Every committed snapshot is stored in the history database (state_path).
On startup the newest one is shown until the source answers.`,
	}
	cmd.AddCommand(newSnapshotsListCommand(), newSnapshotsPruneCommand())
	return cmd
}

func newSnapshotsListCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored snapshots, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutSource(cmd)
			store, err := requireStore(cc.Cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			infos, err := store.ListSnapshots(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return renderSnapshots(cc.Renderer, infos)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of snapshots to list (0 for all)")
	return cmd
}

func renderSnapshots(r *output.Renderer, infos []state.SnapshotInfo) error {
	if r.EffectiveMode() == output.ModeJSON {
		if infos == nil {
			infos = []state.SnapshotInfo{}
		}
		return r.JSON(infos)
	}

	r.Header(1, fmt.Sprintf("Snapshots (%d)", len(infos)))
	if len(infos) == 0 {
		r.Muted("No snapshots stored yet.")
		return nil
	}
	rows := make([][]any, 0, len(infos))
	for _, s := range infos {
		rows = append(rows, []any{s.ID, s.FetchedAt.Format(time.RFC3339), s.Source, s.Nodes, s.Edges, s.Users, s.Transactions})
	}
	r.Table([]string{"ID", "Fetched", "Source", "Nodes", "Edges", "Users", "Transactions"}, rows)
	return nil
}

func newSnapshotsPruneCommand() *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := NewCommandContextWithoutSource(cmd)
			if !cmd.Flags().Changed("keep") {
				keep = cc.Cfg.HistoryKeep
			}
			if keep < 1 {
				return fmt.Errorf("--keep must be at least 1")
			}

			store, err := requireStore(cc.Cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			if cc.Renderer.EffectiveMode() == output.ModeJSON {
				return cc.Renderer.JSON(map[string]int64{"deleted": n, "kept": int64(keep)})
			}
			cc.Renderer.Success(fmt.Sprintf("Deleted %d snapshots, kept the newest %d", n, keep))
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "Number of snapshots to keep (default: history_keep)")
	return cmd
}
