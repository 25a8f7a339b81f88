package graph

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/leapstack-labs/fraudviz/internal/explorer"
	"github.com/leapstack-labs/fraudviz/internal/notifier"
)

// SetupRoutes registers the graph feature routes.
func SetupRoutes(
	router chi.Router,
	mgr *explorer.Manager,
	sessionStore sessions.Store,
	notify *notifier.Notifier,
	isDev bool,
	logger *slog.Logger,
) error {
	handlers := NewHandlers(mgr, sessionStore, notify, isDev, logger)

	router.Get("/", handlers.HandlePage)
	router.Get("/updates", handlers.Updates)
	router.Get("/api/render", handlers.HandleRender)

	router.Route("/cmd", func(r chi.Router) {
		r.Post("/select/{id}", handlers.SelectNode)
		r.Post("/view/{mode}", handlers.SwitchView)
		r.Post("/search", handlers.Search)
		r.Post("/reset", handlers.Reset)
		r.Post("/reload", handlers.Reload)
	})

	return nil
}
