/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the excise dashboard

ROUTE GROUPS:
  /api/plant            Tank registry
  /api/tanks/*          Tank readings and resolved balances
  /api/receipts         Receipt events
  /api/transfers        Transfer and dilution events
  /api/production       Bottling runs
  /api/ledger/*         Two-pool rows and refreshes
  /api/synopsis/*       Consolidated rows
  /api/wastage/*        Ad hoc classification
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

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
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/plant", h.GetPlant)

		// Tank routes
		r.Route("/tanks/{id}", func(r chi.Router) {
			r.Post("/states", h.AppendTankState)
			r.Get("/history", h.GetTankHistory)
			r.Get("/balance", h.GetTankBalance)
		})

		// Event routes
		r.Post("/receipts", h.CreateReceipt)
		r.Post("/transfers", h.CreateTransfer)
		r.Post("/production", h.CreateProduction)

		// Ledger routes
		r.Route("/ledger", func(r chi.Router) {
			r.Get("/", h.ListLedger)
			r.Get("/queue", h.GetQueueStats)
			r.Post("/refresh", h.RefreshRange)
			r.Get("/{date}", h.GetLedger)
			r.Post("/{date}/refresh", h.RefreshLedger)
		})
		r.Get("/synopsis/{date}", h.GetSynopsis)

		r.Post("/wastage/classify", h.ClassifyWastage)

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
