// Package source defines where graph data comes from.
//
// Three implementations exist: the backend HTTP API (httpapi), a direct
// Neo4j connection (neo4jsrc) and an exported snapshot file (filesrc).
// Open picks one from configuration.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/fraudviz/internal/metrics"
	"github.com/leapstack-labs/fraudviz/internal/source/filesrc"
	"github.com/leapstack-labs/fraudviz/internal/source/httpapi"
	"github.com/leapstack-labs/fraudviz/internal/source/neo4jsrc"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// Source types accepted by Open.
const (
	TypeHTTP  = "http"
	TypeNeo4j = "neo4j"
	TypeFile  = "file"
)

// Source reads graph data. Every method is read-only; failures are
// *core.FetchError values.
type Source interface {
	Name() string
	Graph(ctx context.Context) (core.Graph, error)
	Users(ctx context.Context) ([]core.User, error)
	Transactions(ctx context.Context) ([]core.Transaction, error)
	UserRelationships(ctx context.Context, id string) (*core.UserRelationships, error)
	TransactionRelationships(ctx context.Context, id string) (*core.TransactionRelationships, error)
	Close() error
}

// Watcher is implemented by sources that can report their own changes.
type Watcher interface {
	Watch(ctx context.Context, onChange func()) error
}

var (
	_ Source  = (*httpapi.Client)(nil)
	_ Source  = (*neo4jsrc.Source)(nil)
	_ Source  = (*filesrc.Source)(nil)
	_ Watcher = (*filesrc.Source)(nil)
)

// Options carries the collaborators a source is built with.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Open builds the source described by cfg, instrumented with metrics.
func Open(ctx context.Context, cfg *core.SourceConfig, opts Options) (Source, error) {
	if cfg == nil {
		return nil, errors.New("no source configured")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var (
		src Source
		err error
	)
	switch cfg.Type {
	case TypeHTTP, "":
		src, err = httpapi.New(httpapi.Options{
			BaseURL:         cfg.BaseURL,
			Timeout:         cfg.Timeout,
			Breaker:         cfg.Breaker,
			Logger:          logger,
			OnBreakerChange: opts.Metrics.SetBreakerState,
		})
	case TypeNeo4j:
		if cfg.Neo4j == nil {
			return nil, errors.New("neo4j source: missing neo4j settings")
		}
		src, err = neo4jsrc.Open(ctx, *cfg.Neo4j, logger)
	case TypeFile:
		if cfg.File == nil {
			return nil, errors.New("file source: missing file settings")
		}
		src, err = filesrc.New(cfg.File.Path, logger)
	default:
		return nil, fmt.Errorf("unknown source type %q (want %s, %s or %s)", cfg.Type, TypeHTTP, TypeNeo4j, TypeFile)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("source opened", "source", src.Name())
	return Instrument(src, opts.Metrics), nil
}

// Instrument wraps src so every call is timed and counted.
func Instrument(src Source, m *metrics.Collector) Source {
	if m == nil {
		return src
	}
	return &instrumented{Source: src, metrics: m}
}

// Unwrap returns the source underneath any instrumentation.
func Unwrap(src Source) Source {
	if i, ok := src.(*instrumented); ok {
		return i.Source
	}
	return src
}

// AsWatcher reports whether src can watch for its own changes.
func AsWatcher(src Source) (Watcher, bool) {
	w, ok := Unwrap(src).(Watcher)
	return w, ok
}

type instrumented struct {
	Source
	metrics *metrics.Collector
}

func (i *instrumented) observe(endpoint string, start time.Time, err error) {
	status := -1
	if err != nil {
		status = 0
		var fe *core.FetchError
		if errors.As(err, &fe) && fe.StatusCode != 0 {
			status = fe.StatusCode
		}
	}
	i.metrics.ObserveFetch(endpoint, status, time.Since(start))
}

func (i *instrumented) Graph(ctx context.Context) (core.Graph, error) {
	start := time.Now()
	g, err := i.Source.Graph(ctx)
	i.observe("graph", start, err)
	return g, err
}

func (i *instrumented) Users(ctx context.Context) ([]core.User, error) {
	start := time.Now()
	u, err := i.Source.Users(ctx)
	i.observe("users", start, err)
	return u, err
}

func (i *instrumented) Transactions(ctx context.Context) ([]core.Transaction, error) {
	start := time.Now()
	t, err := i.Source.Transactions(ctx)
	i.observe("transactions", start, err)
	return t, err
}

func (i *instrumented) UserRelationships(ctx context.Context, id string) (*core.UserRelationships, error) {
	start := time.Now()
	r, err := i.Source.UserRelationships(ctx, id)
	i.observe("relationships/user", start, err)
	return r, err
}

func (i *instrumented) TransactionRelationships(ctx context.Context, id string) (*core.TransactionRelationships, error) {
	start := time.Now()
	r, err := i.Source.TransactionRelationships(ctx, id)
	i.observe("relationships/transaction", start, err)
	return r, err
}
