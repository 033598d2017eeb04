/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/subjects/*   Subject management, stats, scores
  /api/activity     Status event ingestion (device clients)
  /api/ping         Liveness heartbeat (device clients)
  /api/checkin/*    Device activation flow
  /api/reports      Batch range reports
  /api/accounts/*   Billing account management
  /api/admin/*      Manual billing sweep
  /api/scenarios/*  Demo scenario loaders

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Subject routes
		r.Route("/subjects", func(r chi.Router) {
			r.Get("/", h.ListSubjects)
			r.Post("/", h.CreateSubject)
			r.Get("/{id}", h.GetSubject)
			r.Delete("/{id}", h.DeleteSubject)
			r.Get("/{id}/stats", h.SubjectStats)
			r.Get("/{id}/score", h.SubjectScore)
		})

		// Device client routes
		r.Post("/activity", h.LogActivity)
		r.Post("/ping", h.Ping)
		r.Post("/checkin/verify", h.VerifyCheckin)
		r.Get("/status/{key}", h.CheckStatus)

		// Dashboard and reporting
		r.Get("/dashboard/stats", h.DashboardStats)
		r.Post("/reports", h.GenerateReport)

		// Billing accounts
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Post("/", h.CreateAccount)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/billing/sync", h.SyncBilling)
		})

		// Demo scenarios
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/{name}", h.LoadScenario)
		})
	})

	return r
}
