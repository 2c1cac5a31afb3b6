/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/lots/*        Lot lifecycle (record, edit, delete, history, guards)
  /api/goods/*       Per-good queries and FIFO consumption
  /api/scenarios/*   Demo scenarios (when a Resetter is wired)

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Lot routes
		r.Route("/lots", func(r chi.Router) {
			r.Post("/", h.RecordLot)
			r.Get("/{id}", h.GetLot)
			r.Patch("/{id}", h.EditLot)
			r.Delete("/{id}", h.DeleteLot)
			r.Get("/{id}/history", h.GetHistory)
			r.Get("/{id}/can-delete", h.CanDelete)
			r.Get("/{id}/can-edit-quantity", h.CanEditQuantity)
		})

		// Good routes
		r.Route("/goods", func(r chi.Router) {
			r.Get("/{id}/remaining", h.GetRemaining)
			r.Get("/{id}/summary", h.GetSummary)
			r.Get("/{id}/lots", h.ListLots)
			r.Post("/{id}/consume", h.Consume)
		})

		// Scenario routes (dev/demo)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Larder Lot Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Larder Lot Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><code>POST /api/lots</code> - Record a purchase lot</li>
<li><code>POST /api/goods/{id}/consume</code> - FIFO consumption</li>
<li><code>GET /api/goods/{id}/remaining</code> - Availability</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
