// Package graph serves the explorer page, its live updates and the
// command endpoints.
package graph

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/fraudviz/internal/explorer"
	"github.com/leapstack-labs/fraudviz/internal/notifier"
	"github.com/leapstack-labs/fraudviz/internal/ui/features/graph/pages"
	"github.com/leapstack-labs/fraudviz/pkg/core"
)

// Cookie session names.
const (
	SessionName = "fraudviz"
	sessionKey  = "sid"
)

// SearchSignals are the datastar signals sent by the search box.
type SearchSignals struct {
	Search string `json:"search"`
}

// Handlers provides HTTP handlers for the graph feature.
type Handlers struct {
	manager      *explorer.Manager
	sessionStore sessions.Store
	notifier     *notifier.Notifier
	isDev        bool
	logger       *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(mgr *explorer.Manager, sessionStore sessions.Store, notify *notifier.Notifier, isDev bool, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handlers{
		manager:      mgr,
		sessionStore: sessionStore,
		notifier:     notify,
		isDev:        isDev,
		logger:       logger,
	}
}

// session returns the caller's explorer session, issuing a cookie for a
// new one. It must run before anything is written to w.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) *explorer.Session {
	cs, err := h.sessionStore.Get(r, SessionName)
	if err != nil {
		// an undecodable cookie still yields a fresh session
		h.logger.Debug("ignoring invalid session cookie", "error", err)
	}
	id, _ := cs.Values[sessionKey].(string)

	s := h.manager.Get(id)
	if s.ID != id {
		cs.Values[sessionKey] = s.ID
		if err := cs.Save(r, w); err != nil {
			h.logger.Warn("failed to save session cookie", "error", err)
		}
	}
	return s
}

// frame snapshots everything a render of s needs.
func (h *Handlers) frame(s *explorer.Session) pages.Frame {
	return pages.Frame{
		Model:    s.Render(),
		State:    s.State(),
		Snapshot: h.manager.Loader().Snapshot(),
	}
}

// HandlePage renders the full explorer page.
func (h *Handlers) HandlePage(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	page := pages.Page(pages.PageData{Title: "Explorer", IsDev: h.isDev, Frame: h.frame(s)})
	if err := page.Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleRender returns the session's render model as JSON.
func (h *Handlers) HandleRender(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.Render()); err != nil {
		h.logger.Warn("failed to encode render model", "error", err)
	}
}

// Updates is the long-lived SSE stream. It sends the current frame on
// connect, then a new one on every snapshot commit and whenever the
// session changes in the background.
func (h *Handlers) Updates(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)
	sse := datastar.NewSSE(w, r)

	commits := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(commits)
	changes := s.Subscribe()
	defer s.Unsubscribe(changes)

	if err := h.sendFrame(sse, s); err != nil {
		_ = sse.ConsoleError(err)
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-commits:
			if !ok {
				return
			}
		case _, ok := <-changes:
			if !ok {
				return
			}
		}
		if err := h.sendFrame(sse, s); err != nil {
			_ = sse.ConsoleError(err)
		}
	}
}

// sendFrame patches every page fragment and redraws the graph.
func (h *Handlers) sendFrame(sse *datastar.ServerSentEventGenerator, s *explorer.Session) error {
	f := h.frame(s)
	for _, c := range []templ.Component{
		pages.ViewToggle(f),
		pages.Status(f),
		pages.Stats(f),
		pages.Sidebar(f),
		pages.Details(f),
	} {
		if err := sse.PatchElementTempl(c); err != nil {
			return err
		}
	}

	model, err := json.Marshal(f.Model)
	if err != nil {
		return err
	}
	return sse.ExecuteScript("window.fraudviz && window.fraudviz.render(" + string(model) + ")")
}

// apply runs cmd for the caller's session and answers with a fresh frame.
// Command failures are reported through the frame's status banner.
func (h *Handlers) apply(w http.ResponseWriter, r *http.Request, s *explorer.Session, cmd explorer.Command) {
	// the command outlives a client that disconnects mid-reload
	ctx := context.WithoutCancel(r.Context())
	if _, err := s.Apply(ctx, cmd); err != nil {
		h.logger.Debug("command rejected", "command", cmd.Name(), "error", err)
	}

	sse := datastar.NewSSE(w, r)
	if err := h.sendFrame(sse, s); err != nil {
		_ = sse.ConsoleError(err)
	}
}

// SelectNode handles POST /cmd/select/{id}.
func (h *Handlers) SelectNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	h.apply(w, r, h.session(w, r), explorer.SelectNode{ID: id})
}

// SwitchView handles POST /cmd/view/{mode}.
func (h *Handlers) SwitchView(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "mode")
	mode, err := core.ParseViewMode(raw)
	if err != nil {
		// let the session reject it so the banner shows why
		mode = core.ViewMode(raw)
	}
	h.apply(w, r, h.session(w, r), explorer.SwitchView{Mode: mode})
}

// Search handles POST /cmd/search with the "search" signal.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	s := h.session(w, r)

	// Read signals BEFORE creating SSE (SSE consumes the request body)
	var signals SearchSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		sse := datastar.NewSSE(w, r)
		_ = sse.ConsoleError(err)
		return
	}
	h.apply(w, r, s, explorer.Search{Text: signals.Search})
}

// Reset handles POST /cmd/reset.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.session(w, r), explorer.Reset{})
}

// Reload handles POST /cmd/reload.
func (h *Handlers) Reload(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.session(w, r), explorer.Reload{})
}
