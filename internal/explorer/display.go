package explorer

import (
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// Group is one titled list of connected entity ids.
type Group struct {
	Title string
	IDs   []string
}

// RelationshipGroups flattens a lookup result into display groups, skipping
// empty categories.
func RelationshipGroups(r *core.Relationships) []Group {
	var out []Group
	add := func(title string, conns []core.Connection) {
		if len(conns) == 0 {
			return
		}
		g := Group{Title: title}
		for _, c := range conns {
			g.IDs = append(g.IDs, c.ConnectedID())
		}
		out = append(out, g)
	}

	switch {
	case r == nil:
	case r.User != nil:
		u := r.User
		add(CategoryTitle("direct transactions"), u.DirectTransactions)
		add(CategoryTitle(string(core.RelSharedEmail)), u.SharedEmail)
		add(CategoryTitle(string(core.RelSharedPhone)), u.SharedPhone)
		add(CategoryTitle(string(core.RelSharedAddress)), u.SharedAddress)
		add(CategoryTitle(string(core.RelSharedPaymentMethod)), u.SharedPaymentMethod)
		add(CategoryTitle(string(core.RelCreditTo)), u.CreditTo)
		add(CategoryTitle(string(core.RelDebitFrom)), u.DebitFrom)
	case r.Transaction != nil:
		t := r.Transaction
		for _, party := range []struct {
			title string
			props map[string]any
		}{{"Sender", t.Sender}, {"Receiver", t.Receiver}} {
			if id, _ := party.props["user_id"].(string); id != "" {
				out = append(out, Group{Title: party.title, IDs: []string{id}})
			}
		}
		add(CategoryTitle(string(core.RelSharedDevice)), t.SharedDevice)
		add(CategoryTitle(string(core.RelSharedIP)), t.SharedIP)
	}
	return out
}

// CategoryTitle turns a relationship tag like SHARED_EMAIL into "Shared Email".
func CategoryTitle(tag string) string {
	words := strings.ToLower(strings.ReplaceAll(tag, "_", " "))
	return cases.Title(language.English).String(words)
}

// FormatAmount renders a transaction amount the way graph labels do.
func FormatAmount(amount float64) string {
	return "$" + strconv.FormatFloat(amount, 'f', -1, 64)
}
