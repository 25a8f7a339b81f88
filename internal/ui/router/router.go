// Package router sets up HTTP routes for the UI server.
package router

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/leapstack-labs/fraudviz/internal/explorer"
	"github.com/leapstack-labs/fraudviz/internal/metrics"
	"github.com/leapstack-labs/fraudviz/internal/notifier"
	graphFeature "github.com/leapstack-labs/fraudviz/internal/ui/features/graph"
	"github.com/leapstack-labs/fraudviz/internal/ui/resources"
)

// Deps are the collaborators the routes are built from.
type Deps struct {
	Manager      *explorer.Manager
	SessionStore sessions.Store
	Notifier     *notifier.Notifier
	Metrics      *metrics.Collector
	IsDev        bool
	Logger       *slog.Logger
}

// SetupRoutes configures all routes for the UI server.
func SetupRoutes(router chi.Router, deps Deps) error {
	// Hot reload endpoint for dev mode
	if deps.IsDev {
		setupReload(router)
	}

	router.Handle("/static/*", resources.Handler())
	router.Handle("/metrics", deps.Metrics.Handler())
	router.Get("/healthz", healthz(deps.Manager))

	return graphFeature.SetupRoutes(router, deps.Manager, deps.SessionStore, deps.Notifier, deps.IsDev, deps.Logger)
}

// Health is the /healthz response.
type Health struct {
	Status     string `json:"status"`
	SnapshotID string `json:"snapshot_id,omitempty"`
	Generation uint64 `json:"generation"`
	LastError  string `json:"last_error,omitempty"`
}

// healthz reports ok even before the first snapshot: the server is up and
// serving a usable, if empty, explorer.
func healthz(mgr *explorer.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		l := mgr.Loader()
		h := Health{Status: "ok", Generation: l.Generation()}
		if snap := l.Snapshot(); snap != nil {
			h.SnapshotID = snap.ID
		}
		if err := l.LastError(); err != nil {
			h.Status = "degraded"
			h.LastError = err.Error()
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(h)
	}
}

func setupReload(router chi.Router) {
	reloadChan := make(chan struct{}, 1)
	var hotReloadOnce sync.Once

	router.Get("/reload", func(w http.ResponseWriter, r *http.Request) {
		sse := datastar.NewSSE(w, r)
		reload := func() { _ = sse.ExecuteScript("window.location.reload()") }
		hotReloadOnce.Do(reload)
		select {
		case <-reloadChan:
			reload()
		case <-r.Context().Done():
		}
	})

	router.Get("/hotreload", func(w http.ResponseWriter, _ *http.Request) {
		select {
		case reloadChan <- struct{}{}:
		default:
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}
