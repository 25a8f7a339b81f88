package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NodeType tags a graph node as a user or a transaction.
type NodeType string

// Node types.
const (
	NodeUser        NodeType = "user"
	NodeTransaction NodeType = "transaction"
)

// RelationshipType is the edge tag emitted by the backend.
type RelationshipType string

// Relationship types.
const (
	RelSent                RelationshipType = "SENT"
	RelReceivedBy          RelationshipType = "RECEIVED_BY"
	RelSharedEmail         RelationshipType = "SHARED_EMAIL"
	RelSharedPhone         RelationshipType = "SHARED_PHONE"
	RelSharedAddress       RelationshipType = "SHARED_ADDRESS"
	RelSharedPaymentMethod RelationshipType = "SHARED_PAYMENT_METHOD"
	RelCreditTo            RelationshipType = "CREDIT_TO"
	RelDebitFrom           RelationshipType = "DEBIT_FROM"
	RelSharedDevice        RelationshipType = "SHARED_DEVICE"
	RelSharedIP            RelationshipType = "SHARED_IP"
)

// AllRelationshipTypes lists every relationship the backend knows about.
var AllRelationshipTypes = []RelationshipType{
	RelSent,
	RelReceivedBy,
	RelSharedEmail,
	RelSharedPhone,
	RelSharedAddress,
	RelSharedPaymentMethod,
	RelCreditTo,
	RelDebitFrom,
	RelSharedDevice,
	RelSharedIP,
}

// Valid reports whether t is one of the known relationship types.
func (t RelationshipType) Valid() bool {
	for _, known := range AllRelationshipTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsTransactionFlow reports whether t links a user to a transaction.
func (t RelationshipType) IsTransactionFlow() bool {
	return t == RelSent || t == RelReceivedBy
}

// IsSharedAttribute reports whether t links two entities through a shared attribute.
func (t RelationshipType) IsSharedAttribute() bool {
	switch t {
	case RelSharedEmail, RelSharedPhone, RelSharedAddress,
		RelSharedPaymentMethod, RelSharedDevice, RelSharedIP:
		return true
	}
	return false
}

// GraphNode is a single node of the fetched graph.
//
// On the wire a node is a cytoscape element envelope: {"data": {...}}.
// The id, label and type keys are lifted into fields; every other key is
// kept verbatim in Attrs.
type GraphNode struct {
	ID    string
	Label string
	Type  NodeType
	Attrs map[string]any
}

// Attr returns a passthrough attribute rendered as a string, or "" if absent.
func (n GraphNode) Attr(key string) string {
	v, ok := n.Attrs[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// UnmarshalJSON decodes the {"data": {...}} envelope.
func (n *GraphNode) UnmarshalJSON(b []byte) error {
	data, err := decodeEnvelope(b)
	if err != nil {
		return fmt.Errorf("decode node: %w", err)
	}

	n.ID = takeString(data, "id")
	n.Label = takeString(data, "label")
	n.Type = NodeType(takeString(data, "type"))
	if n.ID == "" {
		return fmt.Errorf("decode node: missing id")
	}
	if n.Label == "" {
		n.Label = n.ID
	}
	n.Attrs = data
	return nil
}

// MarshalJSON encodes the node back into the {"data": {...}} envelope.
func (n GraphNode) MarshalJSON() ([]byte, error) {
	data := make(map[string]any, len(n.Attrs)+3)
	for k, v := range n.Attrs {
		data[k] = v
	}
	data["id"] = n.ID
	data["label"] = n.Label
	data["type"] = string(n.Type)
	return json.Marshal(envelope{Data: data})
}

// GraphEdge is a directed, typed relationship between two nodes.
type GraphEdge struct {
	ID     string
	Source string
	Target string
	Type   RelationshipType
}

// Touches reports whether the edge has id as one of its endpoints.
func (e GraphEdge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

// Other returns the endpoint opposite id.
func (e GraphEdge) Other(id string) string {
	if e.Source == id {
		return e.Target
	}
	return e.Source
}

// UnmarshalJSON decodes the {"data": {...}} envelope.
func (e *GraphEdge) UnmarshalJSON(b []byte) error {
	data, err := decodeEnvelope(b)
	if err != nil {
		return fmt.Errorf("decode edge: %w", err)
	}

	e.Source = takeString(data, "source")
	e.Target = takeString(data, "target")
	e.Type = RelationshipType(strings.ToUpper(takeString(data, "type")))
	e.ID = takeString(data, "id")
	if e.Source == "" || e.Target == "" {
		return fmt.Errorf("decode edge %q: missing endpoint", e.ID)
	}
	if e.ID == "" {
		e.ID = EdgeID(e.Source, e.Type, e.Target)
	}
	return nil
}

// MarshalJSON encodes the edge back into the {"data": {...}} envelope.
func (e GraphEdge) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelope{Data: map[string]any{
		"id":     e.ID,
		"source": e.Source,
		"target": e.Target,
		"type":   string(e.Type),
	}})
}

// EdgeID builds the canonical edge identifier used by the backend.
func EdgeID(source string, rel RelationshipType, target string) string {
	return source + "-" + string(rel) + "-" + target
}

// Graph is the payload of the graph endpoint.
type Graph struct {
	Nodes []GraphNode `json:"nodes" yaml:"nodes"`
	Edges []GraphEdge `json:"edges" yaml:"edges"`
}

type envelope struct {
	Data map[string]any `json:"data"`
}

func decodeEnvelope(b []byte) (map[string]any, error) {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, fmt.Errorf("missing data object")
	}
	return env.Data, nil
}

// takeString removes key from m and returns it as a string.
func takeString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	delete(m, key)
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
