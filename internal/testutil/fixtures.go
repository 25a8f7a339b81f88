package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// MinimalSnapshot is the two-node graph: Alice sent transaction T1.
func MinimalSnapshot() *core.Snapshot {
	return &core.Snapshot{
		ID:        "snap-minimal",
		FetchedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Nodes: []core.GraphNode{
			{ID: "u1", Label: "Alice", Type: core.NodeUser, Attrs: map[string]any{"name": "Alice", "email": "alice@example.com"}},
			{ID: "t1", Label: "T1", Type: core.NodeTransaction, Attrs: map[string]any{"amount": 120.5}},
		},
		Edges: []core.GraphEdge{
			{ID: "e1", Source: "u1", Target: "t1", Type: core.RelSent},
		},
		Users:        []core.User{{UserID: "u1", Name: "Alice", Email: "alice@example.com"}},
		Transactions: []core.Transaction{{TxnID: "t1", Amount: 120.5}},
	}
}

// SampleGraph returns a graph with both views populated:
//
//	u1 -SENT-> t1 -RECEIVED_BY-> u2
//	u2 -SENT-> t2 -RECEIVED_BY-> u3
//	u1 -SHARED_EMAIL- u3, u2 -SHARED_PHONE- u4
//	t1 -SHARED_DEVICE- t2, u1 -CREDIT_TO- u2
func SampleGraph() core.Graph {
	user := func(id, name, email string) core.GraphNode {
		return core.GraphNode{ID: id, Label: name, Type: core.NodeUser, Attrs: map[string]any{"name": name, "email": email}}
	}
	txn := func(id string, amount float64) core.GraphNode {
		return core.GraphNode{ID: id, Label: id, Type: core.NodeTransaction, Attrs: map[string]any{"amount": amount}}
	}
	edge := func(src string, rel core.RelationshipType, dst string) core.GraphEdge {
		return core.GraphEdge{ID: core.EdgeID(src, rel, dst), Source: src, Target: dst, Type: rel}
	}

	return core.Graph{
		Nodes: []core.GraphNode{
			user("u1", "Alice", "alice@example.com"),
			user("u2", "Bob", "bob@example.com"),
			user("u3", "Carol", "alice@example.com"),
			user("u4", "Dave", "dave@example.com"),
			txn("t1", 120.5),
			txn("t2", 99),
		},
		Edges: []core.GraphEdge{
			edge("u1", core.RelSent, "t1"),
			edge("t1", core.RelReceivedBy, "u2"),
			edge("u2", core.RelSent, "t2"),
			edge("t2", core.RelReceivedBy, "u3"),
			edge("u1", core.RelSharedEmail, "u3"),
			edge("u2", core.RelSharedPhone, "u4"),
			edge("t1", core.RelSharedDevice, "t2"),
			edge("u1", core.RelCreditTo, "u2"),
		},
	}
}

// SampleUsers returns the sidebar users matching SampleGraph.
func SampleUsers() []core.User {
	return []core.User{
		{UserID: "u1", Name: "Alice", Email: "alice@example.com"},
		{UserID: "u2", Name: "Bob", Email: "bob@example.com", Phone: "555-0100"},
		{UserID: "u3", Name: "Carol", Email: "alice@example.com"},
		{UserID: "u4", Name: "Dave", Email: "dave@example.com", Phone: "555-0100"},
	}
}

// SampleTransactions returns the sidebar transactions matching SampleGraph.
func SampleTransactions() []core.Transaction {
	return []core.Transaction{
		{TxnID: "t1", Amount: 120.5, DeviceID: "d1", IPAddress: "10.0.0.1"},
		{TxnID: "t2", Amount: 99, DeviceID: "d1", IPAddress: "10.0.0.2"},
	}
}

// SampleSnapshot assembles SampleGraph and its sidebar records.
func SampleSnapshot() *core.Snapshot {
	g := SampleGraph()
	return &core.Snapshot{
		ID:           "snap-sample",
		FetchedAt:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Nodes:        g.Nodes,
		Edges:        g.Edges,
		Users:        SampleUsers(),
		Transactions: SampleTransactions(),
	}
}

// FakeSource is an in-memory graph source with injectable failures.
type FakeSource struct {
	mu sync.Mutex

	GraphData    core.Graph
	UserData     []core.User
	TxnData      []core.Transaction
	GraphErr     error
	UsersErr     error
	TxnErr       error
	LookupErr    error
	UserRels     map[string]*core.UserRelationships
	TxnRels      map[string]*core.TransactionRelationships
	GraphCalls   int
	LookupCalls  int
	BeforeReturn func() // runs inside Graph, used to interleave loads
}

// NewFakeSource returns a source serving SampleSnapshot data.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		GraphData: SampleGraph(),
		UserData:  SampleUsers(),
		TxnData:   SampleTransactions(),
		UserRels:  map[string]*core.UserRelationships{},
		TxnRels:   map[string]*core.TransactionRelationships{},
	}
}

// Name implements source.Source.
func (f *FakeSource) Name() string { return "fake" }

// Graph implements source.Source.
func (f *FakeSource) Graph(ctx context.Context) (core.Graph, error) {
	f.mu.Lock()
	f.GraphCalls++
	hook := f.BeforeReturn
	g, err := f.GraphData, f.GraphErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return core.Graph{}, err
	}
	return g, ctx.Err()
}

// Users implements source.Source.
func (f *FakeSource) Users(context.Context) ([]core.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.UserData, f.UsersErr
}

// Transactions implements source.Source.
func (f *FakeSource) Transactions(context.Context) ([]core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.TxnData, f.TxnErr
}

// UserRelationships implements source.Source.
func (f *FakeSource) UserRelationships(_ context.Context, id string) (*core.UserRelationships, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LookupCalls++
	if f.LookupErr != nil {
		return nil, f.LookupErr
	}
	if r, ok := f.UserRels[id]; ok {
		return r, nil
	}
	return &core.UserRelationships{UserID: id}, nil
}

// TransactionRelationships implements source.Source.
func (f *FakeSource) TransactionRelationships(_ context.Context, id string) (*core.TransactionRelationships, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LookupCalls++
	if f.LookupErr != nil {
		return nil, f.LookupErr
	}
	if r, ok := f.TxnRels[id]; ok {
		return r, nil
	}
	return &core.TransactionRelationships{TxnID: id}, nil
}

// Close implements source.Source.
func (f *FakeSource) Close() error { return nil }

// SetGraphErr swaps the graph failure under the lock.
func (f *FakeSource) SetGraphErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GraphErr = err
}

// SetUsersErr swaps the users failure under the lock.
func (f *FakeSource) SetUsersErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UsersErr = err
}

// Calls returns the graph and lookup call counts.
func (f *FakeSource) Calls() (graph, lookups int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.GraphCalls, f.LookupCalls
}
