package commands

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/fraudviz/internal/cli/output"
	"github.com/leapstack-labs/fraudviz/internal/explorer"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// NewRelationshipsCommand creates the relationships command.
func NewRelationshipsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "relationships user|transaction <id>",
		Aliases: []string{"rels"},
		Short:   "Look up the connections of a user or transaction",
		Long: `Query the source for every connection of one user or transaction,
grouped by relationship type. The lookup goes straight to the source and
does not need a loaded snapshot.`,
		Example: `  fraudviz relationships user u1
  fraudviz relationships transaction t1 --output json`,
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"user", "transaction"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			kind, id := args[0], args[1]
			rels := &core.Relationships{NodeID: id}
			switch kind {
			case "user":
				rels.User, err = cc.Source.UserRelationships(cmd.Context(), id)
			case "transaction", "txn":
				rels.Transaction, err = cc.Source.TransactionRelationships(cmd.Context(), id)
			default:
				return fmt.Errorf("unknown node type %q (want user or transaction)", kind)
			}
			if err != nil {
				return err
			}
			return renderRelationships(cc.Renderer, rels)
		},
	}
	return cmd
}

func renderRelationships(r *output.Renderer, rels *core.Relationships) error {
	if r.EffectiveMode() == output.ModeJSON {
		if rels.User != nil {
			return r.JSON(rels.User)
		}
		return r.JSON(rels.Transaction)
	}

	r.Header(1, fmt.Sprintf("Relationships of %s (%d)", rels.NodeID, rels.Count()))
	groups := explorer.RelationshipGroups(rels)
	if len(groups) == 0 {
		r.Muted("No connections.")
		return nil
	}
	if rels.Transaction != nil && rels.Transaction.TransactionDetails != nil {
		details := rels.Transaction.TransactionDetails
		for _, k := range slices.Sorted(maps.Keys(details)) {
			r.Println(output.FormatKeyValue(k, fmt.Sprint(details[k])))
		}
		r.Println("")
	}
	for _, g := range groups {
		r.Header(2, g.Title)
		rows := make([][]any, 0, len(g.IDs))
		for _, id := range g.IDs {
			rows = append(rows, []any{id})
		}
		r.Table([]string{"Connected"}, rows)
	}
	return nil
}
