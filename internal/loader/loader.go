// Package loader fetches snapshots from a source and publishes them.
//
// A load fetches the graph, users and transactions concurrently and only
// assembles a snapshot once all three succeed. Commits are atomic: readers
// see either the previous snapshot or the new one, never a mix. Every load
// takes a generation number when it starts; a load that finishes after a
// newer one has already committed is discarded.
package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/fraudviz/internal/metrics"
	"github.com/leapstack-labs/fraudviz/internal/notifier"
	"github.com/leapstack-labs/fraudviz/internal/source"
	"github.com/leapstack-labs/fraudviz/internal/state"
	"github.com/leapstack-labs/fraudviz/internal/view"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// ErrStaleLoad is returned by Load when a newer load committed first.
var ErrStaleLoad = errors.New("stale load discarded")

// Config holds the loader's collaborators. Only Source is required.
type Config struct {
	Source   source.Source
	Store    state.Store
	Notifier *notifier.Notifier
	Metrics  *metrics.Collector
	Logger   *slog.Logger

	// HistoryKeep bounds the stored history; 0 keeps everything.
	HistoryKeep int

	// Now and NewID are overridable for tests.
	Now   func() time.Time
	NewID func() string
}

type committed struct {
	snap *core.Snapshot
	gen  uint64
}

// Loader owns the committed snapshot.
type Loader struct {
	src      source.Source
	store    state.Store
	notifier *notifier.Notifier
	metrics  *metrics.Collector
	logger   *slog.Logger
	keep     int
	now      func() time.Time
	newID    func() string

	nextGen atomic.Uint64
	current atomic.Pointer[committed]
	commit  sync.Mutex

	errMu   sync.RWMutex
	lastErr error
}

// New creates a loader.
func New(cfg Config) *Loader {
	l := &Loader{
		src:      cfg.Source,
		store:    cfg.Store,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		keep:     cfg.HistoryKeep,
		now:      cfg.Now,
		newID:    cfg.NewID,
	}
	if l.notifier == nil {
		l.notifier = notifier.New()
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.newID == nil {
		l.newID = func() string { return uuid.New().String() }
	}
	return l
}

// Source returns the underlying source.
func (l *Loader) Source() source.Source {
	return l.src
}

// Notifier returns the commit notifier.
func (l *Loader) Notifier() *notifier.Notifier {
	return l.notifier
}

// Snapshot returns the committed snapshot, or nil before the first commit.
func (l *Loader) Snapshot() *core.Snapshot {
	c := l.current.Load()
	if c == nil {
		return nil
	}
	return c.snap
}

// Generation returns the generation of the committed snapshot.
func (l *Loader) Generation() uint64 {
	c := l.current.Load()
	if c == nil {
		return 0
	}
	return c.gen
}

// LastError returns the error of the most recent failed load, cleared by
// the next commit.
func (l *Loader) LastError() error {
	l.errMu.RLock()
	defer l.errMu.RUnlock()
	return l.lastErr
}

func (l *Loader) setLastError(err error) {
	l.errMu.Lock()
	l.lastErr = err
	l.errMu.Unlock()
}

// Load fetches a fresh snapshot and commits it.
//
// On a fetch failure the committed snapshot is left untouched and the
// *core.FetchError is returned. If a newer load committed while this one
// was in flight, its result or failure is dropped and ErrStaleLoad is
// returned.
func (l *Loader) Load(ctx context.Context) (*core.Snapshot, error) {
	gen := l.nextGen.Add(1)
	start := l.now()
	l.logger.Debug("load started", "generation", gen, "source", l.src.Name())

	var (
		graph core.Graph
		users []core.User
		txns  []core.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		graph, err = l.src.Graph(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = l.src.Users(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		txns, err = l.src.Transactions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if !l.fail(err, gen) {
			l.logger.Debug("discarding stale load failure", "generation", gen, "committed", l.Generation(), "error", err)
			l.metrics.ObserveStale()
			return nil, ErrStaleLoad
		}
		l.logger.Warn("load failed", "generation", gen, "error", err)
		return nil, err
	}

	snap := &core.Snapshot{
		ID:           l.newID(),
		FetchedAt:    l.now().UTC(),
		Source:       l.src.Name(),
		Nodes:        graph.Nodes,
		Edges:        graph.Edges,
		Users:        users,
		Transactions: txns,
	}

	if !l.publish(snap, gen) {
		l.logger.Debug("discarding stale load", "generation", gen, "committed", l.Generation())
		l.metrics.ObserveStale()
		return nil, ErrStaleLoad
	}

	l.logger.Info("snapshot committed",
		"id", snap.ID,
		"generation", gen,
		"nodes", len(snap.Nodes),
		"edges", len(snap.Edges),
		"duration", l.now().Sub(start))
	l.persist(ctx, snap)
	return snap, nil
}

// Seed commits the newest stored snapshot if nothing is committed yet.
// It returns the seeded snapshot, or nil when there was nothing to seed.
func (l *Loader) Seed(ctx context.Context) (*core.Snapshot, error) {
	if l.store == nil || l.Snapshot() != nil {
		return nil, nil
	}
	snap, err := l.store.LatestSnapshot(ctx)
	if errors.Is(err, state.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("seed from history: %w", err)
	}
	// generation 0 loses to any real load
	if !l.publish(snap, 0) {
		return nil, nil
	}
	l.logger.Info("seeded from history", "id", snap.ID, "fetched_at", snap.FetchedAt)
	return snap, nil
}

// fail records err as the last load error unless a newer generation is
// already committed.
func (l *Loader) fail(err error, gen uint64) bool {
	l.commit.Lock()
	defer l.commit.Unlock()
	if cur := l.current.Load(); cur != nil && cur.gen > gen {
		return false
	}
	l.setLastError(err)
	return true
}

// publish commits snap unless a newer generation is already committed.
func (l *Loader) publish(snap *core.Snapshot, gen uint64) bool {
	l.commit.Lock()
	cur := l.current.Load()
	if cur != nil && cur.gen > gen {
		l.commit.Unlock()
		return false
	}
	l.current.Store(&committed{snap: snap, gen: gen})
	l.setLastError(nil)
	l.commit.Unlock()

	l.metrics.ObserveCommit(len(snap.Nodes), len(snap.Edges))
	l.notifier.Broadcast(notifier.Event{Generation: gen, SnapshotID: snap.ID})
	return true
}

// persist stores snap in the history. Failures are logged, not returned.
func (l *Loader) persist(ctx context.Context, snap *core.Snapshot) {
	if l.store == nil {
		return
	}
	if err := l.store.SaveSnapshot(ctx, snap); err != nil {
		l.logger.Warn("failed to store snapshot", "id", snap.ID, "error", err)
		return
	}
	if l.keep > 0 {
		if n, err := l.store.Prune(ctx, l.keep); err != nil {
			l.logger.Warn("failed to prune history", "error", err)
		} else if n > 0 {
			l.logger.Debug("pruned history", "removed", n)
		}
	}
}

// Summary holds the counters shown next to the graph.
type Summary struct {
	SnapshotID string        `json:"snapshot_id"`
	FetchedAt  time.Time     `json:"fetched_at"`
	Mode       core.ViewMode `json:"mode"`
	view.Stats
}

// Summary counts users, transactions and relationships visible in mode.
func (l *Loader) Summary(mode core.ViewMode) (Summary, error) {
	snap := l.Snapshot()
	v, err := view.Partition(snap, mode)
	if err != nil {
		return Summary{Mode: mode}, err
	}
	return Summary{SnapshotID: snap.ID, FetchedAt: snap.FetchedAt, Mode: mode, Stats: v.Stats()}, nil
}

// Relationships looks up the connections of a node in the committed
// snapshot, choosing the user or transaction lookup by node type.
func (l *Loader) Relationships(ctx context.Context, id string) (*core.Relationships, error) {
	snap := l.Snapshot()
	if snap.IsEmpty() {
		return nil, core.ErrNoSnapshot
	}

	var node *core.GraphNode
	for i := range snap.Nodes {
		if snap.Nodes[i].ID == id {
			node = &snap.Nodes[i]
			break
		}
	}
	if node == nil {
		return nil, fmt.Errorf("relationships %q: %w", id, core.ErrUnknownNode)
	}

	out := &core.Relationships{NodeID: id}
	switch node.Type {
	case core.NodeTransaction:
		r, err := l.src.TransactionRelationships(ctx, id)
		if err != nil {
			return nil, err
		}
		out.Transaction = r
	default:
		r, err := l.src.UserRelationships(ctx, id)
		if err != nil {
			return nil, err
		}
		out.User = r
	}
	return out, nil
}

// WatchSource reloads whenever the source reports a change. It returns
// immediately for sources that cannot watch, otherwise blocks until ctx
// is cancelled.
func (l *Loader) WatchSource(ctx context.Context) error {
	w, ok := source.AsWatcher(l.src)
	if !ok {
		return nil
	}
	return w.Watch(ctx, func() {
		if _, err := l.Load(ctx); err != nil && !errors.Is(err, ErrStaleLoad) {
			l.logger.Error("reload after change failed", "error", err)
		}
	})
}
