package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/fraudviz/internal/cli/output"
	"github.com/leapstack-labs/fraudviz/internal/explorer"
	"github.com/leapstack-labs/fraudviz/internal/loader"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// SummaryOutput is the JSON form of the summary command.
type SummaryOutput struct {
	Summary      loader.Summary     `json:"summary"`
	Users        []core.User        `json:"users"`
	Transactions []core.Transaction `json:"transactions"`
}

// NewSummaryCommand creates the summary command.
func NewSummaryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show graph counts and the users and transactions lists",
		Long: `Load a snapshot and print its counts for the selected view, followed by
the users and transactions sidebar lists.

Output adapts to environment:
  - Terminal: Styled tables
  - Piped/Scripted: Markdown format (agent-friendly)

Use --output to override: auto, text, markdown, json`,
		Example: `  # Summary of the transaction view
  fraudviz summary

  # Fraud view counts as JSON
  fraudviz summary --view fraud --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := cc.Prime(cmd.Context()); err != nil {
				return err
			}
			return renderSummary(cc.Renderer, cc.Loader, cc.Cfg.View())
		},
	}
}

func renderSummary(r *output.Renderer, l *loader.Loader, mode core.ViewMode) error {
	sum, err := l.Summary(mode)
	if err != nil {
		return err
	}
	snap := l.Snapshot()

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(SummaryOutput{Summary: sum, Users: snap.Users, Transactions: snap.Transactions})
	}

	r.Header(1, fmt.Sprintf("Graph summary (%s view)", mode))
	if r.EffectiveMode() == output.ModeMarkdown {
		r.Println(output.FormatKeyValue("Snapshot", sum.SnapshotID))
		r.Println(output.FormatKeyValue("Fetched", sum.FetchedAt.Format(time.RFC3339)))
		r.Println(output.FormatKeyValue("Users", fmt.Sprint(sum.Users)))
		r.Println(output.FormatKeyValue("Transactions", fmt.Sprint(sum.Transactions)))
		r.Println(output.FormatKeyValue("Relationships", fmt.Sprint(sum.Relationships)))
		r.Println("")
	} else {
		styles := r.Styles()
		r.Printf("%s %s\n", styles.Key.Render("snapshot:"), sum.SnapshotID)
		r.Printf("%s %s\n", styles.Key.Render("fetched: "), sum.FetchedAt.Format(time.RFC3339))
		r.Printf("%s users, %s transactions, %s relationships\n\n",
			styles.Bold.Render(fmt.Sprint(sum.Users)),
			styles.Bold.Render(fmt.Sprint(sum.Transactions)),
			styles.Bold.Render(fmt.Sprint(sum.Relationships)))
	}

	r.Header(2, "Users")
	users := make([][]any, 0, len(snap.Users))
	for _, u := range snap.Users {
		users = append(users, []any{u.UserID, u.Name, u.Email, u.Phone})
	}
	r.Table([]string{"ID", "Name", "Email", "Phone"}, users)

	r.Header(2, "Transactions")
	txns := make([][]any, 0, len(snap.Transactions))
	for _, t := range snap.Transactions {
		txns = append(txns, []any{t.TxnID, explorer.FormatAmount(t.Amount), t.DeviceID, t.IPAddress})
	}
	r.Table([]string{"ID", "Amount", "Device", "IP"}, txns)
	return nil
}
