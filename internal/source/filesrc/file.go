// Package filesrc serves a graph from an exported snapshot document.
//
// A document is JSON or YAML with the shape
//
//	graph:
//	  nodes: [{data: {id, label, type, ...}}]
//	  edges: [{data: {id, source, target, type}}]
//	users: [...]
//	transactions: [...]
//
// which is also what `fraudviz export` writes.
package filesrc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// Document is the on-disk snapshot format.
type Document struct {
	Graph        core.Graph         `json:"graph"`
	Users        []core.User        `json:"users"`
	Transactions []core.Transaction `json:"transactions"`
}

// Format is a document encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Decode reads a document. YAML is normalised through JSON so both
// formats share the element envelope decoding.
func Decode(r io.Reader, f Format) (*Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if f == FormatYAML {
		var tree any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		if raw, err = json.Marshal(tree); err != nil {
			return nil, fmt.Errorf("normalise yaml: %w", err)
		}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return &doc, nil
}

// Encode writes s as a document.
func Encode(w io.Writer, s *core.Snapshot, f Format) error {
	doc := Document{Graph: s.Graph(), Users: s.Users, Transactions: s.Transactions}

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if f != FormatYAML {
		_, err = w.Write(append(b, '\n'))
		return err
	}

	var tree any
	if err := json.Unmarshal(b, &tree); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return err
	}
	return enc.Close()
}

// Source reads a document from disk on every fetch.
type Source struct {
	path   string
	logger *slog.Logger
}

// New creates a file source.
func New(path string, logger *slog.Logger) (*Source, error) {
	if path == "" {
		return nil, fmt.Errorf("file source: path is required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{path: path, logger: logger}, nil
}

// Name identifies the source in logs and stored snapshots.
func (s *Source) Name() string { return "file " + s.path }

// Path returns the document path.
func (s *Source) Path() string { return s.path }

func (s *Source) load(endpoint string) (*Document, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, &core.FetchError{Endpoint: endpoint, Err: err}
	}
	defer func() { _ = f.Close() }()

	doc, err := Decode(f, FormatFor(s.path))
	if err != nil {
		return nil, &core.FetchError{Endpoint: endpoint, Err: fmt.Errorf("%s: %w", s.path, err)}
	}
	return doc, nil
}

// Graph implements source.Source.
func (s *Source) Graph(context.Context) (core.Graph, error) {
	doc, err := s.load("graph")
	if err != nil {
		return core.Graph{}, err
	}
	return doc.Graph, nil
}

// Users implements source.Source.
func (s *Source) Users(context.Context) ([]core.User, error) {
	doc, err := s.load("users")
	if err != nil {
		return nil, err
	}
	return doc.Users, nil
}

// Transactions implements source.Source.
func (s *Source) Transactions(context.Context) ([]core.Transaction, error) {
	doc, err := s.load("transactions")
	if err != nil {
		return nil, err
	}
	return doc.Transactions, nil
}

// UserRelationships derives a user's connections from the document graph.
func (s *Source) UserRelationships(_ context.Context, id string) (*core.UserRelationships, error) {
	doc, err := s.load("relationships/user")
	if err != nil {
		return nil, err
	}
	out := &core.UserRelationships{UserID: id}
	for _, c := range connections(doc.Graph, id) {
		out.Add(c)
	}
	return out, nil
}

// TransactionRelationships derives a transaction's connections from the document graph.
func (s *Source) TransactionRelationships(_ context.Context, id string) (*core.TransactionRelationships, error) {
	doc, err := s.load("relationships/transaction")
	if err != nil {
		return nil, err
	}
	out := &core.TransactionRelationships{TxnID: id}
	for _, n := range doc.Graph.Nodes {
		if n.ID == id {
			out.TransactionDetails = n.Attrs
		}
	}
	for _, c := range connections(doc.Graph, id) {
		out.Add(c)
	}
	return out, nil
}

// connections lists the neighbours of id in either direction.
func connections(g core.Graph, id string) []core.Connection {
	nodes := make(map[string]core.GraphNode, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes[n.ID] = n
	}

	var out []core.Connection
	for _, e := range g.Edges {
		if !e.Touches(id) {
			continue
		}
		other, ok := nodes[e.Other(id)]
		if !ok {
			continue
		}
		props := make(map[string]any, len(other.Attrs)+1)
		for k, v := range other.Attrs {
			props[k] = v
		}
		nodeType := "User"
		idKey := "user_id"
		if other.Type == core.NodeTransaction {
			nodeType, idKey = "Transaction", "txn_id"
		}
		props[idKey] = other.ID
		out = append(out, core.Connection{RelationshipType: e.Type, Connected: props, NodeType: nodeType})
	}
	return out
}

// Close implements source.Source.
func (s *Source) Close() error { return nil }

// Watch calls onChange after the document is written, debounced by 100ms.
// It blocks until ctx is cancelled.
func (s *Source) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	// editors often replace the file, so watch the directory
	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
				s.logger.Debug("snapshot file changed, reloading", "file", event.Name)
				onChange()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}
