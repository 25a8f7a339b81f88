// Package state keeps a history of committed snapshots in SQLite.
//
// The newest stored snapshot seeds the explorer on startup, so a backend
// outage at launch still shows the last good graph.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// ErrNotFound is returned when no stored snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotInfo describes a stored snapshot without its payload.
type SnapshotInfo struct {
	ID           string    `json:"id"`
	FetchedAt    time.Time `json:"fetched_at"`
	Source       string    `json:"source"`
	Nodes        int       `json:"nodes"`
	Edges        int       `json:"edges"`
	Users        int       `json:"users"`
	Transactions int       `json:"transactions"`
}

// Store persists committed snapshots.
type Store interface {
	SaveSnapshot(ctx context.Context, s *core.Snapshot) error
	LatestSnapshot(ctx context.Context) (*core.Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*core.Snapshot, error)
	ListSnapshots(ctx context.Context, limit int) ([]SnapshotInfo, error)
	Prune(ctx context.Context, keep int) (int64, error)
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
