package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/fraudviz/internal/testutil"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func snapshotAt(id string, at time.Time) *core.Snapshot {
	s := testutil.SampleSnapshot()
	s.ID = id
	s.FetchedAt = at
	s.Source = "fake"
	return s
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore()
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())

	v, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	require.NoError(t, store.Close())
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore()
	ctx := context.Background()

	assert.ErrorIs(t, store.Migrate(), errNotOpen)
	assert.ErrorIs(t, store.SaveSnapshot(ctx, testutil.SampleSnapshot()), errNotOpen)
	_, err := store.LatestSnapshot(ctx)
	assert.ErrorIs(t, err, errNotOpen)
	_, err = store.ListSnapshots(ctx, 0)
	assert.ErrorIs(t, err, errNotOpen)
	_, err = store.Prune(ctx, 1)
	assert.ErrorIs(t, err, errNotOpen)
	assert.NoError(t, store.Close())
}

func TestSQLiteStore_SnapshotRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	want := snapshotAt("s1", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, store.SaveSnapshot(ctx, want))

	got, err := store.GetSnapshot(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, want.ID, got.ID)
	assert.True(t, want.FetchedAt.Equal(got.FetchedAt))
	assert.Equal(t, want.Users, got.Users)
	assert.Equal(t, want.Transactions, got.Transactions)
	assert.Equal(t, want.Edges, got.Edges)
	require.Len(t, got.Nodes, len(want.Nodes))
	for i := range want.Nodes {
		assert.Equal(t, want.Nodes[i].ID, got.Nodes[i].ID)
		assert.Equal(t, want.Nodes[i].Type, got.Nodes[i].Type)
		assert.Equal(t, want.Nodes[i].Attr("email"), got.Nodes[i].Attr("email"))
	}
}

func TestSQLiteStore_Latest(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	_, err := store.LatestSnapshot(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.SaveSnapshot(ctx, snapshotAt("old", base)))
	require.NoError(t, store.SaveSnapshot(ctx, snapshotAt("new", base.Add(500*time.Millisecond))))
	require.NoError(t, store.SaveSnapshot(ctx, snapshotAt("mid", base.Add(time.Millisecond))))

	got, err := store.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new", got.ID)
}

func TestSQLiteStore_ListAndPrune(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, store.SaveSnapshot(ctx, snapshotAt(id, base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := store.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "d", all[0].ID)
	assert.Equal(t, 6, all[0].Nodes)
	assert.Equal(t, 8, all[0].Edges)
	assert.Equal(t, 4, all[0].Users)
	assert.Equal(t, "fake", all[0].Source)

	two, err := store.ListSnapshots(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	removed, err := store.Prune(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	left, err := store.ListSnapshots(ctx, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "d", left[0].ID)

	removed, err = store.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestSQLiteStore_SaveRejectsMissingID(t *testing.T) {
	store := setupTestStore(t)
	assert.Error(t, store.SaveSnapshot(context.Background(), &core.Snapshot{}))
	assert.Error(t, store.SaveSnapshot(context.Background(), nil))
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(ctx, snapshotAt("persisted", time.Now())))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.LatestSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.ID)
	assert.Equal(t, path, reopened.Path())
}

func TestSQLiteStore_DriverFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db)
	ctx := context.Background()
	boom := errors.New("disk I/O error")

	mock.ExpectExec("INSERT OR REPLACE INTO snapshots").WillReturnError(boom)
	err = store.SaveSnapshot(ctx, testutil.SampleSnapshot())
	require.ErrorIs(t, err, boom)

	mock.ExpectQuery("SELECT payload FROM snapshots").WillReturnError(boom)
	_, err = store.LatestSnapshot(ctx)
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNotFound)

	mock.ExpectQuery("SELECT payload FROM snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow("{not json"))
	_, err = store.LatestSnapshot(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode snapshot")

	mock.ExpectQuery("SELECT id, fetched_at").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("x"))
	_, err = store.ListSnapshots(ctx, 5)
	require.Error(t, err)

	mock.ExpectExec("DELETE FROM snapshots").WillReturnResult(sqlmock.NewErrorResult(boom))
	_, err = store.Prune(ctx, 3)
	require.ErrorIs(t, err, boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}
