// Package neo4jsrc reads the fraud graph straight from Neo4j, issuing the
// same queries the HTTP backend runs.
package neo4jsrc

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// Query limits, matching the backend.
const (
	ListLimit        = 200
	UserLimit        = 200
	TransactionLimit = 500
	EdgeLimit        = 2000
)

const (
	usersQuery = `MATCH (u:User) RETURN u LIMIT $limit`
	txnsQuery  = `MATCH (t:Transaction) RETURN t LIMIT $limit`
	edgesQuery = `
		MATCH (n)-[r]->(m)
		RETURN DISTINCT
			CASE WHEN 'User' IN labels(n) THEN n.user_id ELSE n.txn_id END AS source_id,
			CASE WHEN 'User' IN labels(m) THEN m.user_id ELSE m.txn_id END AS target_id,
			type(r) AS rel_type
		LIMIT $limit`
	userRelsQuery = `
		MATCH (u:User {user_id: $id})
		OPTIONAL MATCH (u)-[r]-(connected)
		RETURN u AS self, type(r) AS relationship_type, labels(connected) AS connected_labels, connected`
	txnRelsQuery = `
		MATCH (t:Transaction {txn_id: $id})
		OPTIONAL MATCH (t)-[r]-(connected)
		RETURN t AS self, type(r) AS relationship_type, labels(connected) AS connected_labels, connected`
)

// Runner executes one Cypher query and buffers the result.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error)
}

// DriverRunner runs queries through a driver against one database.
type DriverRunner struct {
	Driver   neo4j.DriverWithContext
	Database string
}

// Run implements Runner.
func (r *DriverRunner) Run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	opts := []neo4j.ExecuteQueryConfigurationOption{neo4j.ExecuteQueryWithReadersRouting()}
	if r.Database != "" {
		opts = append(opts, neo4j.ExecuteQueryWithDatabase(r.Database))
	}
	return neo4j.ExecuteQuery(ctx, r.Driver, query, params, neo4j.EagerResultTransformer, opts...)
}

// Source reads graph data from Neo4j.
type Source struct {
	runner Runner
	name   string
	close  func(context.Context) error
	logger *slog.Logger
}

// Open connects to Neo4j and verifies connectivity.
func Open(ctx context.Context, cfg core.Neo4jConfig, logger *slog.Logger) (*Source, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j source: uri is required")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create Neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, &core.FetchError{Endpoint: "neo4j " + cfg.URI, Err: err}
	}

	s := New(&DriverRunner{Driver: driver, Database: cfg.Database}, logger)
	s.name = "neo4j " + cfg.URI
	s.close = driver.Close
	return s, nil
}

// New creates a source on top of an existing runner.
func New(runner Runner, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{runner: runner, name: "neo4j", logger: logger}
}

// Name identifies the source in logs and stored snapshots.
func (s *Source) Name() string { return s.name }

// Close closes the driver, if this source owns one.
func (s *Source) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close(context.Background())
}

func (s *Source) run(ctx context.Context, endpoint, query string, params map[string]any) (*neo4j.EagerResult, error) {
	res, err := s.runner.Run(ctx, query, params)
	if err != nil {
		s.logger.Debug("neo4j query failed", "endpoint", endpoint, "error", err)
		return nil, &core.FetchError{Endpoint: endpoint, Err: err}
	}
	return res, nil
}

// Graph builds the graph the way the backend does: users and transactions
// up to their limits, then edges whose endpoints were both returned.
func (s *Source) Graph(ctx context.Context) (core.Graph, error) {
	var g core.Graph
	ids := make(map[string]bool)

	users, err := s.run(ctx, "graph", usersQuery, map[string]any{"limit": UserLimit})
	if err != nil {
		return g, err
	}
	for _, rec := range users.Records {
		props := nodeProps(rec, "u")
		id := stringProp(props, "user_id")
		if id == "" {
			continue
		}
		label := stringProp(props, "name")
		if label == "" {
			label = id
		}
		ids[id] = true
		g.Nodes = append(g.Nodes, core.GraphNode{ID: id, Label: label, Type: core.NodeUser, Attrs: props})
	}

	txns, err := s.run(ctx, "graph", txnsQuery, map[string]any{"limit": TransactionLimit})
	if err != nil {
		return g, err
	}
	for _, rec := range txns.Records {
		props := nodeProps(rec, "t")
		id := stringProp(props, "txn_id")
		if id == "" {
			continue
		}
		ids[id] = true
		label := "$" + formatAmount(props["amount"])
		g.Nodes = append(g.Nodes, core.GraphNode{ID: id, Label: label, Type: core.NodeTransaction, Attrs: props})
	}

	edges, err := s.run(ctx, "graph", edgesQuery, map[string]any{"limit": EdgeLimit})
	if err != nil {
		return g, err
	}
	for _, rec := range edges.Records {
		src, _ := recordString(rec, "source_id")
		dst, _ := recordString(rec, "target_id")
		rel, _ := recordString(rec, "rel_type")
		if !ids[src] || !ids[dst] {
			continue
		}
		typ := core.RelationshipType(rel)
		g.Edges = append(g.Edges, core.GraphEdge{ID: core.EdgeID(src, typ, dst), Source: src, Target: dst, Type: typ})
	}

	s.logger.Debug("neo4j graph loaded", "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g, nil
}

// Users returns user records.
func (s *Source) Users(ctx context.Context) ([]core.User, error) {
	res, err := s.run(ctx, "users", usersQuery, map[string]any{"limit": ListLimit})
	if err != nil {
		return nil, err
	}
	out := make([]core.User, 0, len(res.Records))
	for _, rec := range res.Records {
		p := nodeProps(rec, "u")
		out = append(out, core.User{
			UserID:        stringProp(p, "user_id"),
			Name:          stringProp(p, "name"),
			Email:         stringProp(p, "email"),
			Phone:         stringProp(p, "phone"),
			Address:       stringProp(p, "address"),
			PaymentMethod: stringProp(p, "payment_method"),
		})
	}
	return out, nil
}

// Transactions returns transaction records.
func (s *Source) Transactions(ctx context.Context) ([]core.Transaction, error) {
	res, err := s.run(ctx, "transactions", txnsQuery, map[string]any{"limit": ListLimit})
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(res.Records))
	for _, rec := range res.Records {
		p := nodeProps(rec, "t")
		out = append(out, core.Transaction{
			TxnID:     stringProp(p, "txn_id"),
			Amount:    floatProp(p, "amount"),
			DeviceID:  stringProp(p, "device_id"),
			IPAddress: stringProp(p, "ip_address"),
		})
	}
	return out, nil
}

// UserRelationships categorises every connection of a user.
func (s *Source) UserRelationships(ctx context.Context, id string) (*core.UserRelationships, error) {
	res, err := s.run(ctx, "relationships/user", userRelsQuery, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	out := &core.UserRelationships{UserID: id}
	for _, rec := range res.Records {
		if c, ok := connection(rec); ok {
			out.Add(c)
		}
	}
	return out, nil
}

// TransactionRelationships categorises every connection of a transaction.
func (s *Source) TransactionRelationships(ctx context.Context, id string) (*core.TransactionRelationships, error) {
	res, err := s.run(ctx, "relationships/transaction", txnRelsQuery, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	out := &core.TransactionRelationships{TxnID: id}
	for _, rec := range res.Records {
		if out.TransactionDetails == nil {
			out.TransactionDetails = nodeProps(rec, "self")
		}
		if c, ok := connection(rec); ok {
			out.Add(c)
		}
	}
	return out, nil
}

// connection extracts one neighbour row. Rows from the OPTIONAL MATCH
// with no neighbour report false.
func connection(rec *neo4j.Record) (core.Connection, bool) {
	props := nodeProps(rec, "connected")
	if props == nil {
		return core.Connection{}, false
	}
	rel, _ := recordString(rec, "relationship_type")

	nodeType := "Unknown"
	if raw, ok := rec.Get("connected_labels"); ok {
		if labels, ok := raw.([]any); ok && len(labels) > 0 {
			if l, ok := labels[0].(string); ok {
				nodeType = l
			}
		}
	}
	return core.Connection{RelationshipType: core.RelationshipType(rel), Connected: props, NodeType: nodeType}, true
}

func nodeProps(rec *neo4j.Record, key string) map[string]any {
	raw, ok := rec.Get(key)
	if !ok || raw == nil {
		return nil
	}
	node, ok := raw.(neo4j.Node)
	if !ok {
		return nil
	}
	props := make(map[string]any, len(node.Props))
	for k, v := range node.Props {
		props[k] = v
	}
	return props
}

func recordString(rec *neo4j.Record, key string) (string, bool) {
	raw, ok := rec.Get(key)
	if !ok || raw == nil {
		return "", false
	}
	s, ok := raw.(string)
	return s, ok
}

func stringProp(props map[string]any, key string) string {
	switch v := props[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func formatAmount(v any) string {
	switch a := v.(type) {
	case float64:
		return strconv.FormatFloat(a, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(a, 10)
	case nil:
		return "0"
	default:
		return fmt.Sprint(a)
	}
}
