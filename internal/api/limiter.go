package api

import (
	"net/http"
	"sync"
	"time"

	"tourbook/internal/config"
	"tourbook/internal/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const submissionKeyPrefix = "submit:"

// rateLimiter keeps one token bucket per client address.
type rateLimiter struct {
	limiters sync.Map
	cfg      config.APIRateLimitConfig
}

func newRateLimiter(cfg config.APIRateLimitConfig) *rateLimiter {
	return &rateLimiter{cfg: cfg}
}

func (l *rateLimiter) getLimiter(key string) *rate.Limiter {
	if v, ok := l.limiters.Load(key); ok {
		if lim, ok := v.(*rate.Limiter); ok {
			return lim
		}
	}

	burst := l.cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(l.cfg.RPS), burst)
	actual, loaded := l.limiters.LoadOrStore(key, lim)
	if loaded {
		if actualLim, ok := actual.(*rate.Limiter); ok {
			return actualLim
		}
	}
	return lim
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.cfg.RPS <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		if !l.getLimiter(clientIP(r)).Allow() {
			metrics.IncRateLimited("global")
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// throttleSubmissions caps public writes per client within a fixed window.
// Store failures let the request through.
func (s *HTTPServer) throttleSubmissions(next http.Handler) http.Handler {
	window := time.Duration(s.cfg.Submission.WindowSeconds) * time.Second
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Submissions == nil || s.cfg.Submission.Limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := s.deps.Submissions.CheckRateLimit(r.Context(), submissionKeyPrefix+clientIP(r), s.cfg.Submission.Limit, window)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Submission throttle unavailable")
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			metrics.IncRateLimited("submission")
			writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
