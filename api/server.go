/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. ZapLogger:  Structured request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /health               Liveness and database check
  /api/chus, /api/commodities, /api/chws
  /api/requests/*       Submission, dry run, listing, review
  /api/cha/*            CHA login and queue
  /api/chw/*            CHW signup, login, admin approval

AUTHENTICATION:
  Review endpoints and the CHA queue require a CHA bearer token.
  Submission and the admin CHW endpoints are open, as in the deployed
  frontend.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Logging and token checks
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/chwlink/commodity-engine/auth"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// CORSOrigins lists allowed frontend origins.
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(withClaimsHolder)
	r.Use(ZapLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	requireCHA := RequireRole(h.Tokens, auth.RoleCHA)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Reference data
		r.Get("/chus", h.ListCHUs)
		r.Get("/commodities", h.ListCommodities)
		r.Get("/chws", h.ListCHWsWithCHA)

		// Request routes
		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListRequests)
			r.Post("/", h.SubmitRequest)
			r.Post("/check", h.CheckRequest)

			r.Group(func(r chi.Router) {
				r.Use(requireCHA)
				r.Post("/{id}/approve", h.ApproveRequest)
				r.Post("/{id}/reject", h.RejectRequest)
			})
		})

		// CHA routes
		r.Route("/cha", func(r chi.Router) {
			r.Post("/login", h.LoginCHA)
			r.With(requireCHA).Get("/{cha_id}/requests", h.ListCHARequests)
		})

		// CHW routes
		r.Route("/chw", func(r chi.Router) {
			r.Post("/signup", h.SignupCHW)
			r.Post("/login", h.LoginCHW)
			r.Post("/{id}/approve", h.SetCHWApproval)
			r.Get("/list", h.ListCHWs)
			r.Get("/approved", h.ListApprovedCHWs)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found", nil)
	})

	return r
}
