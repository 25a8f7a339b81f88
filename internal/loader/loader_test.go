package loader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/fraudviz/internal/metrics"
	"github.com/leapstack-labs/fraudviz/internal/notifier"
	"github.com/leapstack-labs/fraudviz/internal/state"
	"github.com/leapstack-labs/fraudviz/internal/testutil"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

func newLoader(t *testing.T, src *testutil.FakeSource, store state.Store) (*Loader, *metrics.Collector) {
	t.Helper()
	var n atomic.Int64
	m := metrics.New()
	l := New(Config{
		Source:  src,
		Store:   store,
		Metrics: m,
		Logger:  testutil.NewTestLogger(t),
		NewID:   func() string { return fmt.Sprintf("snap-%d", n.Add(1)) },
	})
	return l, m
}

func memStore(t *testing.T) *state.SQLiteStore {
	t.Helper()
	s, err := state.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoad_CommitsSnapshot(t *testing.T) {
	src := testutil.NewFakeSource()
	l, m := newLoader(t, src, nil)
	sub := l.Notifier().Subscribe()
	defer l.Notifier().Unsubscribe(sub)

	assert.Nil(t, l.Snapshot())

	snap, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "snap-1", snap.ID)
	assert.Equal(t, "fake", snap.Source)
	assert.Len(t, snap.Nodes, 6)
	assert.Len(t, snap.Edges, 8)
	assert.Len(t, snap.Users, 4)
	assert.Len(t, snap.Transactions, 2)
	assert.False(t, snap.FetchedAt.IsZero())
	assert.Same(t, snap, l.Snapshot())
	assert.Equal(t, uint64(1), l.Generation())

	select {
	case ev := <-sub:
		assert.Equal(t, notifier.Event{Generation: 1, SnapshotID: "snap-1"}, ev)
	case <-time.After(time.Second):
		t.Fatal("no commit event")
	}

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Commits))
	assert.Equal(t, 6.0, promtest.ToFloat64(m.SnapshotNodes))
}

func TestLoad_FailureKeepsPreviousSnapshot(t *testing.T) {
	tests := []struct {
		name     string
		breakSrc func(src *testutil.FakeSource)
	}{
		{
			name: "graph fails",
			breakSrc: func(src *testutil.FakeSource) {
				src.SetGraphErr(&core.FetchError{Endpoint: "/graph", StatusCode: 503})
			},
		},
		{
			name: "users fail with 500",
			breakSrc: func(src *testutil.FakeSource) {
				src.SetUsersErr(&core.FetchError{Endpoint: "/users", StatusCode: 500})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testutil.NewFakeSource()
			l, _ := newLoader(t, src, nil)

			first, err := l.Load(context.Background())
			require.NoError(t, err)

			tt.breakSrc(src)
			snap, err := l.Load(context.Background())
			assert.Nil(t, snap)
			require.Error(t, err)
			assert.True(t, core.IsFetchFailure(err))
			assert.Same(t, first, l.Snapshot())
			assert.Equal(t, err, l.LastError())
		})
	}
}

func TestLoad_FirstLoadFailureLeavesNothing(t *testing.T) {
	src := testutil.NewFakeSource()
	src.SetGraphErr(&core.FetchError{Endpoint: "/graph", Err: errors.New("connection refused")})
	l, _ := newLoader(t, src, nil)

	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.Nil(t, l.Snapshot())

	_, err = l.Summary(core.ViewTransactions)
	assert.ErrorIs(t, err, core.ErrNoSnapshot)
}

func TestLoad_StaleLoadDiscarded(t *testing.T) {
	src := testutil.NewFakeSource()
	l, m := newLoader(t, src, nil)

	// The first load starts a second load from inside its graph fetch, so
	// the second one commits while the first is still in flight.
	var nested atomic.Bool
	var newer *struct {
		id  string
		err error
	}
	src.BeforeReturn = func() {
		if !nested.CompareAndSwap(false, true) {
			return
		}
		s, err := l.Load(context.Background())
		newer = &struct {
			id  string
			err error
		}{err: err}
		if s != nil {
			newer.id = s.ID
		}
	}

	snap, err := l.Load(context.Background())
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrStaleLoad)

	require.NotNil(t, newer)
	require.NoError(t, newer.err)
	assert.Equal(t, newer.id, l.Snapshot().ID)
	assert.Equal(t, uint64(2), l.Generation())
	assert.Equal(t, 1.0, promtest.ToFloat64(m.StaleLoads))
}

func TestLoad_StaleFailureKeepsHealthyState(t *testing.T) {
	src := testutil.NewFakeSource()
	src.SetGraphErr(&core.FetchError{Endpoint: "/graph", StatusCode: 500})
	l, m := newLoader(t, src, nil)

	// The first load fails, but only after a second load has committed.
	var nested atomic.Bool
	var newerErr error
	src.BeforeReturn = func() {
		if !nested.CompareAndSwap(false, true) {
			return
		}
		src.SetGraphErr(nil)
		_, newerErr = l.Load(context.Background())
	}

	snap, err := l.Load(context.Background())
	assert.Nil(t, snap)
	assert.ErrorIs(t, err, ErrStaleLoad)

	require.NoError(t, newerErr)
	require.NotNil(t, l.Snapshot())
	assert.Equal(t, uint64(2), l.Generation())
	assert.NoError(t, l.LastError())
	assert.Equal(t, 1.0, promtest.ToFloat64(m.StaleLoads))
}

func TestLoad_PersistsAndPrunes(t *testing.T) {
	store := memStore(t)
	src := testutil.NewFakeSource()
	l := New(Config{Source: src, Store: store, HistoryKeep: 2})

	for range 3 {
		_, err := l.Load(context.Background())
		require.NoError(t, err)
	}

	infos, err := store.ListSnapshots(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	latest, err := store.LatestSnapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, l.Snapshot().ID, latest.ID)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := memStore(t)
	require.NoError(t, store.SaveSnapshot(ctx, testutil.SampleSnapshot()))

	src := testutil.NewFakeSource()
	l, _ := newLoader(t, src, store)

	seeded, err := l.Seed(ctx)
	require.NoError(t, err)
	require.NotNil(t, seeded)
	assert.Equal(t, "snap-sample", l.Snapshot().ID)
	assert.Equal(t, uint64(0), l.Generation())

	// already committed, nothing to do
	again, err := l.Seed(ctx)
	require.NoError(t, err)
	assert.Nil(t, again)

	// a real load supersedes the seed
	_, err = l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snap-1", l.Snapshot().ID)
}

func TestSeed_EmptyHistory(t *testing.T) {
	l, _ := newLoader(t, testutil.NewFakeSource(), memStore(t))
	snap, err := l.Seed(context.Background())
	require.NoError(t, err)
	assert.Nil(t, snap)
	assert.Nil(t, l.Snapshot())
}

func TestSummary(t *testing.T) {
	l, _ := newLoader(t, testutil.NewFakeSource(), nil)
	_, err := l.Load(context.Background())
	require.NoError(t, err)

	tests := []struct {
		mode                       core.ViewMode
		users, txns, relationships int
	}{
		{core.ViewTransactions, 4, 2, 4},
		{core.ViewFraud, 4, 2, 2},
	}
	for _, tt := range tests {
		t.Run(string(tt.mode), func(t *testing.T) {
			s, err := l.Summary(tt.mode)
			require.NoError(t, err)
			assert.Equal(t, "snap-1", s.SnapshotID)
			assert.Equal(t, tt.mode, s.Mode)
			assert.Equal(t, tt.users, s.Users)
			assert.Equal(t, tt.txns, s.Transactions)
			assert.Equal(t, tt.relationships, s.Relationships)
		})
	}
}

func TestRelationships_DispatchesByNodeType(t *testing.T) {
	src := testutil.NewFakeSource()
	src.UserRels["u1"] = &core.UserRelationships{UserID: "u1", CreditTo: []core.Connection{{RelationshipType: core.RelCreditTo}}}
	src.TxnRels["t1"] = &core.TransactionRelationships{TxnID: "t1"}
	l, _ := newLoader(t, src, nil)
	ctx := context.Background()

	_, err := l.Relationships(ctx, "u1")
	assert.ErrorIs(t, err, core.ErrNoSnapshot)

	_, err = l.Load(ctx)
	require.NoError(t, err)

	rels, err := l.Relationships(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, rels.User)
	assert.Nil(t, rels.Transaction)
	assert.Len(t, rels.User.CreditTo, 1)

	rels, err = l.Relationships(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, rels.Transaction)
	assert.Nil(t, rels.User)

	_, err = l.Relationships(ctx, "zz")
	assert.ErrorIs(t, err, core.ErrUnknownNode)
	assert.True(t, core.IsPrecondition(err))

	_, lookups := src.Calls()
	assert.Equal(t, 2, lookups)
}

func TestWatchSource_NonWatcherReturns(t *testing.T) {
	l, _ := newLoader(t, testutil.NewFakeSource(), nil)
	assert.NoError(t, l.WatchSource(context.Background()))
}
