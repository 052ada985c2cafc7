package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tourbook/internal/domain"

	"github.com/rs/zerolog"
)

const defaultRecoveryInterval = time.Minute

// FailoverRateLimitStore routes to the primary store and switches to the
// fallback after a primary error, probing the primary again once per
// recovery interval.
type FailoverRateLimitStore struct {
	primary          domain.RateLimitStore
	fallback         domain.RateLimitStore
	logger           *zerolog.Logger
	recoveryInterval time.Duration

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

func NewFailoverRateLimitStore(primary, fallback domain.RateLimitStore, logger *zerolog.Logger) *FailoverRateLimitStore {
	return &FailoverRateLimitStore{
		primary:          primary,
		fallback:         fallback,
		logger:           logger,
		recoveryInterval: defaultRecoveryInterval,
	}
}

// IsDegraded reports whether requests are currently served by the fallback.
func (r *FailoverRateLimitStore) IsDegraded() bool {
	return r.isDown.Load()
}

func (r *FailoverRateLimitStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if !r.isDown.Load() || r.shouldProbe() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			if r.isDown.CompareAndSwap(true, false) {
				r.logger.Info().Msg("Primary rate limit store recovered")
			}
			return allowed, nil
		}
		if !r.isDown.Swap(true) {
			r.logger.Error().Err(err).Msg("Primary rate limit store failed, falling back to memory")
		}
		r.markChecked()
	}

	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

func (r *FailoverRateLimitStore) shouldProbe() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastCheck) <= r.recoveryInterval {
		return false
	}
	r.lastCheck = time.Now()
	return true
}

func (r *FailoverRateLimitStore) markChecked() {
	r.mu.Lock()
	r.lastCheck = time.Now()
	r.mu.Unlock()
}
