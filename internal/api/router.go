package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc Services, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Habit widgets.
	r.Post("/habits", h.MountHabit)
	r.Get("/habits", h.ListWidgets)
	r.Get("/habits/{id}", h.GetHabit)
	r.Post("/habits/{id}/log", h.LogHabit)
	r.Delete("/habits/{id}", h.UnmountHabit)

	// Registry.
	r.Get("/registry", h.Registry)
	r.Get("/registry/duplicates", h.Duplicates)

	// Group widgets.
	r.Post("/groups", h.RenderGroup)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
