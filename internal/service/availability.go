package service

import (
	"context"
	"fmt"
	"strings"

	"tourbook/internal/config"
	"tourbook/internal/domain"
	"tourbook/internal/models"

	"github.com/rs/zerolog"
)

// CapacityPolicy resolves how many bookings a tour accepts per day.
type CapacityPolicy struct {
	Default int
	PerTour map[string]int
}

func NewCapacityPolicy(cfg config.BookingConfig) CapacityPolicy {
	perTour := make(map[string]int, len(cfg.TourCapacities))
	for id, c := range cfg.TourCapacities {
		perTour[id] = c
	}
	return CapacityPolicy{Default: cfg.DefaultCapacity, PerTour: perTour}
}

// Resolve applies override, then the per-tour value, then the default, then
// the built-in fallback.
func (p CapacityPolicy) Resolve(tourID string, override *int) int {
	if override != nil && *override > 0 {
		return *override
	}
	if c, ok := p.PerTour[tourID]; ok && c > 0 {
		return c
	}
	if p.Default > 0 {
		return p.Default
	}
	return config.FallbackTourCapacity
}

type AvailabilityService struct {
	repo       domain.BookingRepository
	policy     CapacityPolicy
	activeOnly bool
	logger     *zerolog.Logger
}

func NewAvailabilityService(
	repo domain.BookingRepository, policy CapacityPolicy, activeOnly bool, logger *zerolog.Logger,
) *AvailabilityService {
	return &AvailabilityService{repo: repo, policy: policy, activeOnly: activeOnly, logger: logger}
}

// CheckAvailability reports how many bookings a tour holds on a day and
// whether another one fits.
func (s *AvailabilityService) CheckAvailability(
	ctx context.Context, tourID, date string, capacityOverride *int,
) (*models.Availability, error) {
	tourID = strings.TrimSpace(tourID)
	if tourID == "" {
		return nil, validationf("Tour id is required")
	}
	day, err := NormalizeDate(date)
	if err != nil {
		return nil, validationf("Invalid date")
	}

	count, err := s.repo.CountBookings(ctx, tourID, day, s.activeOnly)
	if err != nil {
		s.logger.Error().Err(err).Str("tour_id", tourID).Str("date", day).Msg("Failed to count bookings")
		return nil, fmt.Errorf("count bookings for %s on %s: %w", tourID, day, err)
	}

	capacity := s.policy.Resolve(tourID, capacityOverride)
	return &models.Availability{
		TourID:      tourID,
		Date:        day,
		BookedCount: count,
		Capacity:    capacity,
		IsAvailable: count < capacity,
	}, nil
}

// Capacity returns the admission capacity for a tour.
func (s *AvailabilityService) Capacity(tourID string) int {
	return s.policy.Resolve(tourID, nil)
}

// CountsActiveOnly reports whether rejected and cancelled bookings are excluded from counts.
func (s *AvailabilityService) CountsActiveOnly() bool {
	return s.activeOnly
}
