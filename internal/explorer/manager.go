package explorer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/fraudviz/internal/loader"
	"github.com/leapstack-labs/fraudviz/internal/metrics"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// DefaultMaxSessions bounds how many browser sessions a Manager keeps.
const DefaultMaxSessions = 1024

// Manager keeps one Session per browser, keyed by a random id.
type Manager struct {
	loader *loader.Loader
	opts   Options
	max    int
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session  *Session
	lastUsed time.Time
}

// NewManager creates a manager whose sessions start in mode.
func NewManager(l *loader.Loader, mode core.ViewMode, m *metrics.Collector, logger *slog.Logger) *Manager {
	return &Manager{
		loader:   l,
		opts:     Options{Mode: mode, Metrics: m, Logger: logger},
		max:      DefaultMaxSessions,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// Loader returns the loader sessions are bound to.
func (m *Manager) Loader() *loader.Loader {
	return m.loader
}

// Get returns the session for id, creating a new one when id is empty or
// unknown. The returned session's ID may differ from id.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.sessions[id]; ok && id != "" {
		e.lastUsed = m.now()
		return e.session
	}

	if len(m.sessions) >= m.max {
		m.evictOldest()
	}
	s := NewSession(uuid.New().String(), m.loader, m.opts)
	m.sessions[s.ID] = &entry{session: s, lastUsed: m.now()}
	return s
}

// Lookup returns the session for id without creating one.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = m.now()
	return e.session, true
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Wait blocks until every session's relationship lookups finish.
func (m *Manager) Wait() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		sessions = append(sessions, e.session)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Wait()
	}
}

func (m *Manager) evictOldest() {
	var (
		oldestID string
		oldest   time.Time
	)
	for id, e := range m.sessions {
		if oldestID == "" || e.lastUsed.Before(oldest) {
			oldestID, oldest = id, e.lastUsed
		}
	}
	delete(m.sessions, oldestID)
}
