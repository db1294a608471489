package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tribuna/internal/caseservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *caseservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Tribunal table.
	r.Get("/tribunals", h.ListTribunals)
	r.Get("/tribunals/resolve", h.ResolveTribunal)

	// Cases.
	r.Route("/cases", func(r chi.Router) {
		r.Get("/", h.ListCases)
		r.Post("/", h.CreateCase)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetCase)
			r.Put("/monitoring", h.UpdateMonitoring)
			r.Get("/movements", h.ListMovements)
			r.Post("/movements/read", h.MarkRead)
			r.Post("/refresh", h.RefreshCase)
			r.Post("/import", h.ImportPayload)
		})
	})

	r.Get("/movements/search", h.SearchMovements)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
