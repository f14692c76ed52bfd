package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Shivanand-hulikatti/donation-camp-scheduler/internal/auth"
)

// NewRouter builds the full route tree.
func NewRouter(h *CampHandler, verifier *auth.Verifier, corsOrigin string) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(h.log))           // structured access log
	r.Use(CORS(corsOrigin))

	r.Get("/health", HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(verifier, h.Unauthorized))

		r.Route("/camps", func(r chi.Router) {
			r.Post("/", h.CreateCamp)
			r.Get("/", h.ListCamps)
			r.Get("/summary", h.CampSummaries)
			r.Get("/{id}", h.GetCamp)
			r.Patch("/{id}", h.UpdateCamp)
			r.Delete("/{id}", h.DeleteCamp)
			r.Post("/{id}/register", h.Register)
			r.Get("/{id}/registrations", h.ListCampRegistrations)
		})
		r.Route("/registrations", func(r chi.Router) {
			r.Get("/", h.ListMyRegistrations)
			r.Post("/{id}/cancel", h.CancelRegistration)
		})
	})

	return r
}
