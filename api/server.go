/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the booking frontend
  5. Auth:       Caller principal from the bearer token (API routes only)

ROUTE GROUPS:
  /api/bookings/*       Scheduling, lifecycle and tracking
  /api/services         Catalog
  /api/staff/*          Registration and dashboards
  /api/queue/*          Stylist rotation
  /api/admin/*          Salon overview
  /api/payroll/*        Monthly payroll
  /api/scenarios/*      Demo scenarios
  /health               Liveness (no auth)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Principal middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds transport-level settings.
type RouterConfig struct {
	AllowedOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.Auth.Middleware)

		r.Route("/bookings", func(r chi.Router) {
			r.Get("/", h.ListBookings)
			r.Post("/", h.CreateBooking)
			r.Get("/{id}", h.GetBooking)
			r.Get("/{id}/track", h.TrackBooking)
			r.Post("/{id}/confirm", h.ConfirmBooking)
			r.Post("/{id}/start", h.StartBooking)
			r.Post("/{id}/finish", h.FinishBooking)
			r.Post("/{id}/cancel", h.CancelBooking)
			r.Post("/{id}/reschedule", h.RescheduleBooking)
			r.Post("/{id}/assign", h.AssignBooking)
		})

		r.Get("/services", h.ListServices)

		r.Route("/staff", func(r chi.Router) {
			r.Post("/", h.CreateStaff)
			r.Get("/{id}/dashboard", h.GetDashboard)
		})

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", h.GetQueue)
			r.Post("/", h.Enqueue)
			r.Post("/next", h.DequeueNext)
			r.Post("/requeue", h.Requeue)
		})

		r.Get("/admin/stats", h.GetStats)

		r.Route("/payroll", func(r chi.Router) {
			r.Get("/", h.ListPayroll)
			r.Post("/generate", h.GeneratePayroll)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
