package core

import (
	"fmt"
	"strings"
	"time"
)

// ViewMode selects which relationship subset of a snapshot is visible.
type ViewMode string

// View modes.
const (
	ViewTransactions ViewMode = "transactions"
	ViewFraud        ViewMode = "fraud"
)

// ParseViewMode parses a user-supplied view mode.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(strings.ToLower(strings.TrimSpace(s))) {
	case ViewTransactions:
		return ViewTransactions, nil
	case ViewFraud:
		return ViewFraud, nil
	}
	return "", fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidViewMode, s, ViewTransactions, ViewFraud)
}

// Valid reports whether m is a known view mode.
func (m ViewMode) Valid() bool {
	return m == ViewTransactions || m == ViewFraud
}

// User is a sidebar record from the users endpoint.
type User struct {
	UserID        string `json:"user_id" yaml:"user_id"`
	Name          string `json:"name,omitempty" yaml:"name,omitempty"`
	Email         string `json:"email,omitempty" yaml:"email,omitempty"`
	Phone         string `json:"phone,omitempty" yaml:"phone,omitempty"`
	Address       string `json:"address,omitempty" yaml:"address,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty" yaml:"payment_method,omitempty"`
}

// Transaction is a sidebar record from the transactions endpoint.
type Transaction struct {
	TxnID     string  `json:"txn_id" yaml:"txn_id"`
	Amount    float64 `json:"amount" yaml:"amount"`
	DeviceID  string  `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	IPAddress string  `json:"ip_address,omitempty" yaml:"ip_address,omitempty"`
}

// Snapshot is the complete graph fetched at one point in time.
//
// A snapshot is never mutated after it has been built. Reloading replaces
// it wholesale.
type Snapshot struct {
	ID           string        `json:"id"`
	FetchedAt    time.Time     `json:"fetched_at"`
	Source       string        `json:"source,omitempty"`
	Nodes        []GraphNode   `json:"nodes"`
	Edges        []GraphEdge   `json:"edges"`
	Users        []User        `json:"users"`
	Transactions []Transaction `json:"transactions"`
}

// IsEmpty reports whether there is nothing to display.
func (s *Snapshot) IsEmpty() bool {
	return s == nil || len(s.Nodes) == 0
}

// Graph returns the node/edge part of the snapshot.
func (s *Snapshot) Graph() Graph {
	if s == nil {
		return Graph{}
	}
	return Graph{Nodes: s.Nodes, Edges: s.Edges}
}

// String returns a short description for logs.
func (s *Snapshot) String() string {
	if s == nil {
		return "<no snapshot>"
	}
	return fmt.Sprintf("snapshot %s (%d nodes, %d edges)", s.ID, len(s.Nodes), len(s.Edges))
}
