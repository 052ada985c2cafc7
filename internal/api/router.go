package api

import (
	"net/http"

	"tourbook/internal/auth"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (s *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.requestContext)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.middleware)

		r.Route("/bookings", func(r chi.Router) {
			r.With(s.throttleSubmissions, s.optionalAuth).Post("/", s.handleCreateBooking)
			r.With(s.throttleSubmissions, s.optionalAuth).Post("/create", s.handleCreateBooking)
			r.Get("/availability/{tourId}", s.handleAvailability)

			r.With(s.requireRole(auth.RoleUser)).Get("/mine", s.handleMyBookings)

			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(auth.RoleAdmin))
				r.Get("/", s.handleListBookings)
				r.Get("/export", s.handleExport)
				r.Get("/{id}", s.handleGetBooking)
				r.Put("/{id}/status", s.handleUpdateStatus)
			})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegisterUser)
			r.Post("/login", s.handleLoginUser)
			r.With(s.requireRole(auth.RoleUser)).Get("/dashboard", s.handleDashboard)
		})

		r.Route("/admin", func(r chi.Router) {
			r.With(s.optionalAuth).Post("/register", s.handleRegisterAdmin)
			r.Post("/login", s.handleLoginAdmin)
			r.With(s.requireRole(auth.RoleAdmin)).Get("/contacts", s.handleListContacts)
		})

		r.With(s.throttleSubmissions).Post("/contact", s.handleContact)
	})

	return r
}
