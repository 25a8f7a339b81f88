// Package core defines the shared language of the fraudviz system.
//
// This package contains:
//   - Graph entities (GraphNode, GraphEdge, Snapshot)
//   - Sidebar records (User, Transaction)
//   - Relationship lookup results (UserRelationships, TransactionRelationships)
//   - Configuration types (SourceConfig, UIConfig)
//   - The error taxonomy (FetchError, ErrPrecondition)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
