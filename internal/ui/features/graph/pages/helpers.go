// Package pages renders the explorer page and the fragments patched into
// it over SSE. Every fragment has a stable id so datastar can morph it in
// place.
package pages

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/leapstack-labs/fraudviz/internal/explorer"
	"github.com/leapstack-labs/fraudviz/internal/view"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// Fragment ids.
const (
	ViewToggleID = "view-toggle"
	StatusID     = "status"
	StatsID      = "stats"
	SidebarID    = "sidebar"
	DetailsID    = "details"
)

// External scripts.
const (
	datastarScript  = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"
	cytoscapeScript = "https://unpkg.com/cytoscape@3.30.2/dist/cytoscape.min.js"
)

// Frame is everything one render of the page needs.
type Frame struct {
	Model    view.RenderModel
	State    explorer.State
	Snapshot *core.Snapshot
}

// PageData holds the full page.
type PageData struct {
	Title string
	IsDev bool
	Frame Frame
}

var viewModes = []core.ViewMode{core.ViewTransactions, core.ViewFraud}

// SelectAction is the datastar expression that selects node id.
func SelectAction(id string) string {
	target, _ := json.Marshal("/cmd/select/" + url.PathEscape(id))
	return "@post(" + string(target) + ")"
}

func viewAction(m core.ViewMode) string {
	return "@post('/cmd/view/" + string(m) + "')"
}

func modeLabel(m core.ViewMode) string {
	if m == core.ViewFraud {
		return "Fraud View"
	}
	return "Transaction View"
}

type stat struct {
	Label string
	Value string
}

func stats(s view.Stats) []stat {
	return []stat{
		{"Users", strconv.Itoa(s.Users)},
		{"Transactions", strconv.Itoa(s.Transactions)},
		{"Relationships", strconv.Itoa(s.Relationships)},
	}
}

func searchSummary(f Frame) string {
	return fmt.Sprintf("%d nodes match %q", f.Model.Count(view.Highlighted), f.State.Query)
}

func groupHeading(g explorer.Group) string {
	return fmt.Sprintf("%s (%d)", g.Title, len(g.IDs))
}

type attrEntry struct {
	Key   string
	Value string
}

// selectedAttrs returns the selected node's attributes sorted by key.
func selectedAttrs(f Frame) []attrEntry {
	var attrs map[string]any
	for _, n := range f.Model.Nodes {
		if n.ID == f.State.Selected {
			attrs = n.Attrs
		}
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attrEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, attrEntry{Key: k, Value: fmt.Sprint(attrs[k])})
	}
	return out
}
