package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"tourbook/internal/config"
	"tourbook/internal/domain"
	"tourbook/internal/service"

	"github.com/rs/zerolog"
)

// Dependencies are the services the HTTP API dispatches to.
type Dependencies struct {
	Bookings     *service.BookingService
	Availability *service.AvailabilityService
	Auth         *service.AuthService
	Contacts     *service.ContactService
	Submissions  domain.RateLimitStore
	Checks       []ReadinessCheck
}

// ReadinessCheck reports whether a backing dependency can serve traffic.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HTTPServer struct {
	cfg          config.APIConfig
	maxRangeDays int
	deps         Dependencies
	limiter      *rateLimiter
	logger       *zerolog.Logger
	server       *http.Server
}

func NewHTTPServer(cfg config.APIConfig, exports config.ExportConfig, deps Dependencies, logger *zerolog.Logger) *HTTPServer {
	srv := &HTTPServer{
		cfg:          cfg,
		maxRangeDays: exports.MaxRangeDays,
		deps:         deps,
		limiter:      newRateLimiter(cfg.RateLimit),
		logger:       logger,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

// Handler exposes the routed handler, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
