// Package view derives what is visible from a snapshot.
//
// Everything here is a pure function of its inputs: Partition filters a
// snapshot by view mode, the highlight functions compute per-element visual
// state against a View, and Render combines both into a RenderModel that a
// renderer adapter can draw without further logic.
package view

import (
	"fmt"

	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// View is the visible subset of a snapshot for one view mode.
type View struct {
	Mode     core.ViewMode
	Snapshot *core.Snapshot
	Nodes    []core.GraphNode
	Edges    []core.GraphEdge

	// HiddenEdges counts edges of a visible relationship type that were
	// dropped because one of their endpoints is not visible.
	HiddenEdges int

	nodeIndex map[string]int
	adjacency map[string][]int // node id -> indexes into Edges
}

// modeEdgeTypes lists the relationship types each view shows.
var modeEdgeTypes = map[core.ViewMode]map[core.RelationshipType]bool{
	core.ViewTransactions: {
		core.RelSent:       true,
		core.RelReceivedBy: true,
	},
	core.ViewFraud: {
		core.RelSharedEmail:         true,
		core.RelSharedPhone:         true,
		core.RelSharedAddress:       true,
		core.RelSharedPaymentMethod: true,
		core.RelSharedDevice:        true,
		core.RelSharedIP:            true,
	},
}

// ShowsEdge reports whether mode displays edges of type rel.
func ShowsEdge(mode core.ViewMode, rel core.RelationshipType) bool {
	return modeEdgeTypes[mode][rel]
}

// ShowsNode reports whether mode displays nodes of type t.
func ShowsNode(mode core.ViewMode, t core.NodeType) bool {
	if mode == core.ViewFraud {
		return t == core.NodeUser
	}
	return mode == core.ViewTransactions
}

// Partition filters s down to what mode displays.
//
// It fails with core.ErrNoSnapshot when s is nil or has no nodes, and with
// core.ErrInvalidViewMode for an unknown mode. Output keeps snapshot order.
func Partition(s *core.Snapshot, mode core.ViewMode) (*View, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("partition: %w: %q", core.ErrInvalidViewMode, mode)
	}
	if s.IsEmpty() {
		return nil, fmt.Errorf("partition %s view: %w", mode, core.ErrNoSnapshot)
	}

	v := &View{
		Mode:      mode,
		Snapshot:  s,
		nodeIndex: make(map[string]int, len(s.Nodes)),
		adjacency: make(map[string][]int),
	}

	for _, n := range s.Nodes {
		if !ShowsNode(mode, n.Type) {
			continue
		}
		if _, dup := v.nodeIndex[n.ID]; dup {
			continue
		}
		v.nodeIndex[n.ID] = len(v.Nodes)
		v.Nodes = append(v.Nodes, n)
	}

	for _, e := range s.Edges {
		if !ShowsEdge(mode, e.Type) {
			continue
		}
		if !v.HasNode(e.Source) || !v.HasNode(e.Target) {
			v.HiddenEdges++
			continue
		}
		idx := len(v.Edges)
		v.Edges = append(v.Edges, e)
		v.adjacency[e.Source] = append(v.adjacency[e.Source], idx)
		if e.Target != e.Source {
			v.adjacency[e.Target] = append(v.adjacency[e.Target], idx)
		}
	}

	return v, nil
}

// HasNode reports whether id is visible.
func (v *View) HasNode(id string) bool {
	_, ok := v.nodeIndex[id]
	return ok
}

// Node returns the visible node with the given id.
func (v *View) Node(id string) (core.GraphNode, bool) {
	i, ok := v.nodeIndex[id]
	if !ok {
		return core.GraphNode{}, false
	}
	return v.Nodes[i], true
}

// EdgesOf returns the visible edges touching id.
func (v *View) EdgesOf(id string) []core.GraphEdge {
	idxs := v.adjacency[id]
	out := make([]core.GraphEdge, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, v.Edges[i])
	}
	return out
}

// Neighbors returns the ids of visible nodes sharing an edge with id.
func (v *View) Neighbors(id string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, i := range v.adjacency[id] {
		other := v.Edges[i].Other(id)
		if other == id || seen[other] {
			continue
		}
		seen[other] = true
		out = append(out, other)
	}
	return out
}

// Stats are the summary counters shown next to the graph.
type Stats struct {
	Users         int `json:"users"`
	Transactions  int `json:"transactions"`
	Relationships int `json:"relationships"`
}

// Stats counts sidebar records and visible relationships.
func (v *View) Stats() Stats {
	return Stats{
		Users:         len(v.Snapshot.Users),
		Transactions:  len(v.Snapshot.Transactions),
		Relationships: len(v.Edges),
	}
}
