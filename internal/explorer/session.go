// Package explorer holds the interactive state of one person exploring the
// graph and applies their commands to it.
//
// A Session owns its view mode, highlight, search query and selection.
// Renderers turn input into Commands, call Apply, and draw the returned
// RenderModel. Nothing here knows about HTTP, terminals or the DOM.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/fraudviz/internal/loader"
	"github.com/leapstack-labs/fraudviz/internal/metrics"
	"github.com/leapstack-labs/fraudviz/internal/notifier"
	"github.com/leapstack-labs/fraudviz/internal/view"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// Result is what a renderer draws after a command.
type Result struct {
	Model view.RenderModel
}

// State is a copy of a session's fields for display.
type State struct {
	Mode             core.ViewMode
	Query            string
	Selected         string
	Relationships    *core.Relationships
	RelationshipsErr error
	Status           string
}

// Session is one explorer's owned state.
type Session struct {
	ID string

	loader  *loader.Loader
	metrics *metrics.Collector
	logger  *slog.Logger

	mu        sync.Mutex
	mode      core.ViewMode
	highlight view.Highlight
	query     string
	selected  string
	rels      *core.Relationships
	relsErr   error
	status    string
	// snapshotID is the snapshot the highlight was computed against.
	snapshotID string
	lookupSeq  uint64

	lookups sync.WaitGroup
	changes *notifier.Notifier
}

// Options configures a new session.
type Options struct {
	Mode    core.ViewMode
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// NewSession creates a session bound to l.
func NewSession(id string, l *loader.Loader, opts Options) *Session {
	mode := opts.Mode
	if !mode.Valid() {
		mode = core.ViewTransactions
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		ID:      id,
		loader:  l,
		metrics: opts.Metrics,
		logger:  logger.With("session", id),
		mode:    mode,
		changes: notifier.New(),
	}
}

// Subscribe returns a channel signalled whenever session state changes
// outside of Apply, such as a relationship lookup completing. Every
// subscriber is signalled, so several renderers may share one session.
// Callers must Unsubscribe when done.
func (s *Session) Subscribe() chan notifier.Event {
	return s.changes.Subscribe()
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (s *Session) Unsubscribe(ch chan notifier.Event) {
	s.changes.Unsubscribe(ch)
}

// Wait blocks until in-flight relationship lookups finish.
func (s *Session) Wait() {
	s.lookups.Wait()
}

// State returns a copy of the session's fields.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncSnapshot()
	return State{
		Mode:             s.mode,
		Query:            s.query,
		Selected:         s.selected,
		Relationships:    s.rels,
		RelationshipsErr: s.relsErr,
		Status:           s.statusLocked(),
	}
}

// Apply runs cmd against the session and returns the new render model.
// Failures leave the session's graph state unchanged and are reported both
// as the returned error and as the model's status.
func (s *Session) Apply(ctx context.Context, cmd Command) (Result, error) {
	var err error
	switch c := cmd.(type) {
	case SelectNode:
		err = s.selectNode(ctx, c.ID)
	case SwitchView:
		err = s.switchView(c.Mode)
	case Search:
		err = s.search(c.Text)
	case Reset:
		s.reset()
	case Reload:
		err = s.reload(ctx)
	default:
		err = fmt.Errorf("unsupported command %T", cmd)
	}

	name := "unknown"
	if cmd != nil {
		name = cmd.Name()
	}
	s.metrics.ObserveCommand(name, err)
	if err != nil {
		s.logger.Debug("command failed", "command", name, "error", err)
	}
	return Result{Model: s.Render()}, err
}

// Render draws the session's current state against the committed snapshot.
func (s *Session) Render() view.RenderModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncSnapshot()

	m, err := view.Render(s.loader.Snapshot(), s.mode, s.highlight)
	m.Status = s.statusLocked()
	if err != nil && m.Status == "" {
		m.Status = err.Error()
	}
	return m
}

func (s *Session) statusLocked() string {
	if s.status != "" {
		return s.status
	}
	if err := s.loader.LastError(); err != nil {
		return "load failed: " + err.Error()
	}
	return ""
}

// syncSnapshot drops the highlight when a new snapshot was committed since
// it was computed. Callers hold s.mu.
func (s *Session) syncSnapshot() {
	snap := s.loader.Snapshot()
	if snap == nil || snap.ID == s.snapshotID {
		return
	}
	if s.snapshotID != "" {
		s.clearLocked()
	}
	s.snapshotID = snap.ID
}

func (s *Session) clearLocked() {
	s.highlight = view.Clear()
	s.query = ""
	s.selected = ""
	s.rels = nil
	s.relsErr = nil
	s.lookupSeq++
}

func (s *Session) fail(err error) error {
	s.status = err.Error()
	return err
}

func (s *Session) selectNode(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncSnapshot()

	v, err := view.Partition(s.loader.Snapshot(), s.mode)
	if err != nil {
		return s.fail(err)
	}
	h, err := view.Select(v, id)
	if err != nil {
		return s.fail(err)
	}

	s.clearLocked()
	s.highlight = h
	s.selected = id
	s.status = ""
	s.lookupRelationships(ctx, id, s.lookupSeq)
	return nil
}

// lookupRelationships fetches the diagnostic connections of id in the
// background. A result is only attached if no newer selection happened.
func (s *Session) lookupRelationships(ctx context.Context, id string, seq uint64) {
	ctx = context.WithoutCancel(ctx)
	s.lookups.Add(1)
	go func() {
		defer s.lookups.Done()
		rels, err := s.loader.Relationships(ctx, id)
		if err != nil {
			s.logger.Warn("relationship lookup failed", "node", id, "error", err)
		}

		s.mu.Lock()
		current := seq == s.lookupSeq
		if current {
			s.rels, s.relsErr = rels, err
		}
		s.mu.Unlock()
		if !current {
			return
		}
		s.changes.Broadcast(notifier.Event{Generation: seq})
	}()
}

func (s *Session) switchView(mode core.ViewMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncSnapshot()

	if !mode.Valid() {
		return s.fail(fmt.Errorf("view %q: %w", mode, core.ErrInvalidViewMode))
	}
	if s.loader.Snapshot().IsEmpty() {
		return s.fail(fmt.Errorf("switch to %s view: %w", mode, core.ErrNoSnapshot))
	}
	s.mode = mode
	s.clearLocked()
	s.status = ""
	return nil
}

func (s *Session) search(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncSnapshot()

	v, err := view.Partition(s.loader.Snapshot(), s.mode)
	if err != nil {
		return s.fail(err)
	}
	s.clearLocked()
	s.highlight = view.Search(v, text)
	if s.highlight.Active() {
		s.query = s.highlight.Focus
	}
	s.status = ""
	return nil
}

func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncSnapshot()
	s.clearLocked()
	s.status = ""
}

func (s *Session) reload(ctx context.Context) error {
	// the load runs without the session lock so renders stay responsive
	_, err := s.loader.Load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case errors.Is(err, loader.ErrStaleLoad):
		// a newer load already committed; that is what the user wanted
		s.status = ""
		err = nil
	case err != nil:
		return s.fail(fmt.Errorf("reload: %w", err))
	default:
		s.status = ""
	}
	s.syncSnapshot()
	return err
}
