package view

import (
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// RenderNode is a node ready for drawing.
type RenderNode struct {
	ID    string         `json:"id"`
	Label string         `json:"label"`
	Type  core.NodeType  `json:"type"`
	Color string         `json:"color"`
	Size  int            `json:"size"`
	State State          `json:"state"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// RenderEdge is an edge ready for drawing.
type RenderEdge struct {
	ID     string                `json:"id"`
	Source string                `json:"source"`
	Target string                `json:"target"`
	Type   core.RelationshipType `json:"type"`
	Color  string                `json:"color"`
	State  State                 `json:"state"`
}

// RenderModel is everything a renderer needs to draw one frame.
type RenderModel struct {
	SnapshotID string        `json:"snapshot_id,omitempty"`
	Mode       core.ViewMode `json:"mode"`
	Nodes      []RenderNode  `json:"nodes"`
	Edges      []RenderEdge  `json:"edges"`
	Stats      Stats         `json:"stats"`
	Highlight  Cause         `json:"highlight,omitempty"`
	Focus      string        `json:"focus,omitempty"`
	Status     string        `json:"status,omitempty"`
}

// Empty reports whether the model has nothing to draw.
func (m RenderModel) Empty() bool {
	return len(m.Nodes) == 0
}

// Count returns how many nodes are in each state.
func (m RenderModel) Count(s State) int {
	n := 0
	for _, node := range m.Nodes {
		if node.State == s {
			n++
		}
	}
	return n
}

// Render partitions s by mode and applies h.
func Render(s *core.Snapshot, mode core.ViewMode, h Highlight) (RenderModel, error) {
	v, err := Partition(s, mode)
	if err != nil {
		return RenderModel{Mode: mode}, err
	}
	return v.Render(h), nil
}

// Render applies h to the view.
func (v *View) Render(h Highlight) RenderModel {
	m := RenderModel{
		SnapshotID: v.Snapshot.ID,
		Mode:       v.Mode,
		Nodes:      make([]RenderNode, 0, len(v.Nodes)),
		Edges:      make([]RenderEdge, 0, len(v.Edges)),
		Stats:      v.Stats(),
		Highlight:  h.Cause,
		Focus:      h.Focus,
	}

	for _, n := range v.Nodes {
		color, size := NodeStyle(n.Type)
		m.Nodes = append(m.Nodes, RenderNode{
			ID:    n.ID,
			Label: n.Label,
			Type:  n.Type,
			Color: color,
			Size:  size,
			State: h.NodeState(n.ID),
			Attrs: n.Attrs,
		})
	}
	for _, e := range v.Edges {
		m.Edges = append(m.Edges, RenderEdge{
			ID:     e.ID,
			Source: e.Source,
			Target: e.Target,
			Type:   e.Type,
			Color:  EdgeColor(e.Type),
			State:  h.EdgeState(e.ID),
		})
	}
	return m
}
