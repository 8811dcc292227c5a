/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for mobile/web clients

ROUTE GROUPS:
  /api/employees/*        Employees, punches, day state, balances
  /api/unlock-requests/*  Unlock decisions
  /api/locations/*        Geofence pool
  /api/violations         Cross-user violation log
  /api/admin/*            Admin operations

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
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Post("/{id}/punch", h.Punch)
			r.Get("/{id}/day", h.GetDayState)
			r.Get("/{id}/overtime", h.GetOvertime)
			r.Get("/{id}/leave-balances", h.GetLeaveBalances)
			r.Post("/{id}/unlock-requests", h.RequestUnlock)
			r.Get("/{id}/unlock-requests", h.ListUnlocks)
			r.Get("/{id}/violations", h.ListEmployeeViolations)
			r.Post("/{id}/locations", h.AssignLocation)
		})

		// Unlock decision routes
		r.Route("/unlock-requests", func(r chi.Router) {
			r.Post("/{id}/decision", h.DecideUnlock)
		})

		// Location routes
		r.Route("/locations", func(r chi.Router) {
			r.Get("/", h.ListLocations)
			r.Post("/", h.CreateLocation)
		})

		// Violation routes (cross-user)
		r.Get("/violations", h.ListViolations)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/bank-compoff", h.TriggerBankCompOff)
		})
	})

	return r
}
