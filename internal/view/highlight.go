package view

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// State is the visual emphasis of one graph element.
type State int

// Element states.
const (
	Normal State = iota
	Highlighted
	Faded
)

func (s State) String() string {
	switch s {
	case Highlighted:
		return "highlighted"
	case Faded:
		return "faded"
	default:
		return "normal"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*s = Normal
	case "highlighted":
		*s = Highlighted
	case "faded":
		*s = Faded
	default:
		return fmt.Errorf("unknown element state %q", b)
	}
	return nil
}

// Cause records what produced a highlight.
type Cause string

// Highlight causes.
const (
	CauseNone   Cause = ""
	CauseSelect Cause = "select"
	CauseSearch Cause = "search"
)

// Highlight is the highlight/fade state of a whole view.
//
// When inactive every element is Normal. When active, elements in Nodes or
// Edges are Highlighted and every other element is Faded. A Highlight is
// always rebuilt from scratch; nothing patches an existing one.
type Highlight struct {
	Cause Cause
	// Focus is the selected node id or the search query.
	Focus string
	Nodes map[string]struct{}
	Edges map[string]struct{}
}

// Active reports whether any element is emphasised.
func (h Highlight) Active() bool {
	return h.Cause != CauseNone
}

// NodeState returns the state of node id.
func (h Highlight) NodeState(id string) State {
	if !h.Active() {
		return Normal
	}
	if _, ok := h.Nodes[id]; ok {
		return Highlighted
	}
	return Faded
}

// EdgeState returns the state of edge id.
func (h Highlight) EdgeState(id string) State {
	if !h.Active() {
		return Normal
	}
	if _, ok := h.Edges[id]; ok {
		return Highlighted
	}
	return Faded
}

// Clear returns the all-normal state.
func Clear() Highlight {
	return Highlight{}
}

// Select highlights node id, its direct neighbours in v and the edges
// touching it. The id must be visible in v.
func Select(v *View, id string) (Highlight, error) {
	if v == nil {
		return Highlight{}, fmt.Errorf("select %q: %w", id, core.ErrNoSnapshot)
	}
	if !v.HasNode(id) {
		return Highlight{}, fmt.Errorf("select %q: %w", id, core.ErrUnknownNode)
	}

	h := Highlight{
		Cause: CauseSelect,
		Focus: id,
		Nodes: map[string]struct{}{id: {}},
		Edges: make(map[string]struct{}),
	}
	for _, e := range v.EdgesOf(id) {
		h.Edges[e.ID] = struct{}{}
		h.Nodes[e.Other(id)] = struct{}{}
	}
	return h, nil
}

// Search highlights nodes matching query and their direct neighbour nodes.
// All edges fade. A blank query clears the highlight.
func Search(v *View, query string) Highlight {
	query = strings.TrimSpace(query)
	if query == "" || v == nil {
		return Clear()
	}

	needle := fold(query)
	h := Highlight{
		Cause: CauseSearch,
		Focus: query,
		Nodes: make(map[string]struct{}),
		Edges: make(map[string]struct{}),
	}
	for _, n := range v.Nodes {
		if !Matches(n, needle) {
			continue
		}
		h.Nodes[n.ID] = struct{}{}
		for _, nb := range v.Neighbors(n.ID) {
			h.Nodes[nb] = struct{}{}
		}
	}
	return h
}

// searchFields are the node fields a query is matched against.
var searchFields = []string{"name", "email"}

// Matches reports whether n's label, id, name or email contains the
// already-folded needle.
func Matches(n core.GraphNode, needle string) bool {
	if strings.Contains(fold(n.Label), needle) || strings.Contains(fold(n.ID), needle) {
		return true
	}
	for _, f := range searchFields {
		if s := n.Attr(f); s != "" && strings.Contains(fold(s), needle) {
			return true
		}
	}
	return false
}

// FoldQuery normalises a search query for Matches.
func FoldQuery(q string) string {
	return fold(strings.TrimSpace(q))
}

// fold applies Unicode case folding. Casers carry state, so each call
// gets its own.
func fold(s string) string {
	return cases.Fold().String(s)
}
