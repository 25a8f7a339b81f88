package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/fraudviz/internal/testutil"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

const graphJSON = `{
  "nodes": [
    {"data": {"id": "u1", "label": "Alice", "type": "user", "email": "alice@example.com"}},
    {"data": {"id": "t1", "label": "$120.5", "type": "transaction", "amount": 120.5}}
  ],
  "edges": [
    {"data": {"id": "u1-SENT-t1", "source": "u1", "target": "t1", "type": "SENT"}}
  ]
}`

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /graph", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(graphJSON))
	})
	mux.HandleFunc("GET /users", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"user_id": "u1", "name": "Alice", "email": "alice@example.com"}]`))
	})
	mux.HandleFunc("GET /transactions", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"txn_id": "t1", "amount": 120.5, "device_id": "d1", "ip_address": "10.0.0.1"}]`))
	})
	mux.HandleFunc("GET /relationships/user/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"user_id": "` + r.PathValue("id") + `", "direct_transactions": [
			{"relationship_type": "SENT", "connected": {"txn_id": "t1"}, "node_type": "Transaction"}],
			"all_connections": [{"relationship_type": "SENT", "connected": {"txn_id": "t1"}, "node_type": "Transaction"}]}`))
	})
	mux.HandleFunc("GET /relationships/transaction/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"txn_id": "` + r.PathValue("id") + `", "sender": {"user_id": "u1"}, "receiver": null,
			"shared_device": [], "shared_ip": [], "all_connections": []}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: baseURL, Timeout: time.Second, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return c
}

func TestClient_Fetches(t *testing.T) {
	srv := newBackend(t)
	c := newClient(t, srv.URL+"/")
	ctx := context.Background()

	g, err := c.Graph(ctx)
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "Alice", g.Nodes[0].Label)
	assert.Equal(t, "alice@example.com", g.Nodes[0].Attr("email"))
	require.Len(t, g.Edges, 1)
	assert.Equal(t, core.RelSent, g.Edges[0].Type)

	users, err := c.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.User{{UserID: "u1", Name: "Alice", Email: "alice@example.com"}}, users)

	txns, err := c.Transactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, "d1", txns[0].DeviceID)

	ur, err := c.UserRelationships(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", ur.UserID)
	require.Len(t, ur.DirectTransactions, 1)
	assert.Equal(t, "t1", ur.DirectTransactions[0].ConnectedID())

	tr, err := c.TransactionRelationships(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "u1", tr.Sender["user_id"])
	assert.Nil(t, tr.Receiver)

	assert.NoError(t, c.Close())
}

func TestClient_EscapesPathIDs(t *testing.T) {
	var gotPath atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"user_id": "x"}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	_, err := c.UserRelationships(context.Background(), "a/b c")
	require.NoError(t, err)
	assert.Equal(t, "/relationships/user/a%2Fb%20c", gotPath.Load())
}

func TestClient_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail": "neo4j unavailable"}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)
	_, err := c.Users(context.Background())
	require.Error(t, err)

	var fe *core.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusInternalServerError, fe.StatusCode)
	assert.Equal(t, EndpointUsers, fe.Endpoint)
	assert.True(t, core.IsFetchFailure(err))
	assert.Contains(t, err.Error(), "neo4j unavailable")
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newClient(t, url)
	_, err := c.Graph(context.Background())
	require.Error(t, err)

	var fe *core.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.StatusCode)
	assert.True(t, core.IsFetchFailure(err))
}

func TestClient_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"nodes": [{"nope": 1}]}`))
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Graph(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsFetchFailure(err))
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var states []int
	c, err := New(Options{
		BaseURL: srv.URL,
		Breaker: &core.BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureRatio: 0.5, MinRequests: 2},
		OnBreakerChange: func(_ string, state int) {
			states = append(states, state)
		},
	})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := c.Graph(context.Background())
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen.String(), c.BreakerState())
	assert.Equal(t, []int{int(gobreaker.StateOpen)}, states)

	_, err = c.Graph(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, core.IsFetchFailure(err))
	assert.Equal(t, int32(2), hits.Load(), "open breaker does not reach the backend")
}

func TestClient_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(Options{
		BaseURL: srv.URL,
		Breaker: &core.BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureRatio: 0.5, MinRequests: 1},
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := c.UserRelationships(context.Background(), "ghost")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed.String(), c.BreakerState())
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "localhost:8000", "://bad"} {
		_, err := New(Options{BaseURL: base})
		assert.Error(t, err, base)
	}
}
