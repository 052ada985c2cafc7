package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tourbook/internal/database"
	"tourbook/internal/domain"
	"tourbook/internal/events"
	"tourbook/internal/metrics"
	"tourbook/internal/models"

	"github.com/rs/zerolog"
)

const maxStatusUpdateAttempts = 3

type CreateBookingRequest struct {
	TourID            string `json:"tourId"`
	TourName          string `json:"tourName"`
	FullName          string `json:"fullName"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	TravelDate        string `json:"travelDate"`
	NumberOfPeople    *int   `json:"numberOfPeople"`
	AccommodationType string `json:"accommodationType"`
	OtherRequirements string `json:"otherRequirements"`
}

type BookingService struct {
	repo              domain.BookingRepository
	availability      *AvailabilityService
	eventBus          domain.EventPublisher
	notifier          domain.NotificationDispatcher
	strictTransitions bool
	logger            *zerolog.Logger
}

func NewBookingService(
	repo domain.BookingRepository,
	availability *AvailabilityService,
	eventBus domain.EventPublisher,
	notifier domain.NotificationDispatcher,
	strictTransitions bool,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		repo:              repo,
		availability:      availability,
		eventBus:          eventBus,
		notifier:          notifier,
		strictTransitions: strictTransitions,
		logger:            logger,
	}
}

func (s *BookingService) buildBooking(req CreateBookingRequest, userID *string) (*models.Booking, error) {
	b := &models.Booking{
		TourID:            strings.TrimSpace(req.TourID),
		TourName:          strings.TrimSpace(req.TourName),
		UserID:            userID,
		FullName:          strings.TrimSpace(req.FullName),
		Email:             strings.TrimSpace(req.Email),
		Phone:             strings.TrimSpace(req.Phone),
		NumberOfPeople:    models.DefaultNumberOfPeople,
		AccommodationType: strings.TrimSpace(req.AccommodationType),
		OtherRequirements: strings.TrimSpace(req.OtherRequirements),
		Status:            models.StatusPending,
	}

	if b.TourID == "" || b.TourName == "" || b.FullName == "" || b.Email == "" || strings.TrimSpace(req.TravelDate) == "" {
		return nil, validationf("Required booking information missing")
	}

	day, err := NormalizeDate(req.TravelDate)
	if err != nil {
		return nil, validationf("Invalid travel date")
	}
	b.TravelDate = day

	if req.NumberOfPeople != nil {
		if *req.NumberOfPeople < 1 {
			return nil, validationf("Number of people must be at least 1")
		}
		b.NumberOfPeople = *req.NumberOfPeople
	}

	if b.AccommodationType == "" {
		b.AccommodationType = models.DefaultAccommodationType
	}
	return b, nil
}

// CreateBooking validates the request and admits it if the tour still has
// room on that day. userID is nil for guest bookings.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest, userID *string) (*models.Booking, error) {
	booking, err := s.buildBooking(req, userID)
	if err != nil {
		metrics.IncBookingRejected("invalid")
		return nil, err
	}

	capacity := s.availability.Capacity(booking.TourID)
	err = s.repo.CreateBookingWithLock(ctx, booking, capacity, s.availability.CountsActiveOnly())
	if errors.Is(err, database.ErrNotAvailable) {
		metrics.IncBookingRejected("full")
		s.logger.Info().Str("tour_id", booking.TourID).Str("date", booking.TravelDate).Int("capacity", capacity).
			Msg("Booking refused, tour fully booked")
		return nil, &ConflictError{Message: fmt.Sprintf("Tour fully booked for %s", booking.TravelDate)}
	}
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	metrics.IncBookingCreated()
	s.logger.Info().Str("booking_id", booking.ID).Str("tour_id", booking.TourID).Str("date", booking.TravelDate).
		Msg("Booking created")

	s.publishEvent(events.EventBookingCreated, booking, "")
	s.notify(ctx, models.NotificationBookingConfirmation, booking)
	s.notify(ctx, models.NotificationAdminNewBooking, booking)

	return booking, nil
}

// UpdateStatus moves a booking to newStatus. A non-nil adminNotes replaces
// the stored notes.
func (s *BookingService) UpdateStatus(
	ctx context.Context, bookingID, newStatus string, adminNotes *string,
) (*models.Booking, error) {
	status, err := models.ParseBookingStatus(newStatus)
	if err != nil {
		return nil, validationf("Invalid status")
	}

	for attempt := 1; ; attempt++ {
		current, err := s.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}

		if s.strictTransitions && !current.Status.CanTransitionTo(status) {
			return nil, validationf("Cannot change status from %s to %s", current.Status, status)
		}

		err = s.repo.UpdateBookingStatusWithVersion(ctx, bookingID, current.Version, status, adminNotes)
		if errors.Is(err, database.ErrConcurrentModification) && attempt < maxStatusUpdateAttempts {
			continue
		}
		if errors.Is(err, database.ErrConcurrentModification) {
			return nil, &ConflictError{Message: "Booking was modified concurrently, please retry"}
		}
		if errors.Is(err, database.ErrNotFound) {
			return nil, &NotFoundError{Message: "Booking not found"}
		}
		if err != nil {
			return nil, fmt.Errorf("update booking status: %w", err)
		}

		updated, err := s.GetBooking(ctx, bookingID)
		if err != nil {
			return nil, err
		}

		metrics.IncStatusChange(status.String())
		s.logger.Info().Str("booking_id", bookingID).Str("from", current.Status.String()).Str("to", status.String()).
			Msg("Booking status updated")

		s.publishEvent(events.EventBookingStatusChanged, updated, current.Status.String())
		s.notify(ctx, models.NotificationStatusUpdate, updated)
		return updated, nil
	}
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &NotFoundError{Message: "Booking not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", id, err)
	}
	return booking, nil
}

// ListBookings returns all bookings newest first with per-status totals.
func (s *BookingService) ListBookings(ctx context.Context) (*models.BookingList, error) {
	bookings, err := s.repo.ListBookings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	list := &models.BookingList{Bookings: bookings}
	for _, b := range bookings {
		list.Stats.Add(b.Status)
	}
	return list, nil
}

func (s *BookingService) ListUserBookings(ctx context.Context, userID string) ([]*models.Booking, error) {
	bookings, err := s.repo.ListUserBookings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list bookings of user %s: %w", userID, err)
	}
	return bookings, nil
}

// BookingsForExport returns bookings travelling within [from, to].
func (s *BookingService) BookingsForExport(ctx context.Context, from, to string, maxRangeDays int) ([]*models.Booking, error) {
	start, err := NormalizeDate(from)
	if err != nil {
		return nil, validationf("Invalid from date")
	}
	end, err := NormalizeDate(to)
	if err != nil {
		return nil, validationf("Invalid to date")
	}
	if end < start {
		return nil, validationf("Invalid date range")
	}
	if maxRangeDays > 0 && daysBetween(start, end) > maxRangeDays {
		return nil, validationf("Date range exceeds %d days", maxRangeDays)
	}

	bookings, err := s.repo.ListBookingsByDateRange(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list bookings for export: %w", err)
	}
	return bookings, nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, previousStatus string) {
	if s.eventBus == nil {
		return
	}
	payload := events.NewBookingPayload(booking)
	payload.PreviousStatus = previousStatus
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Str("booking_id", booking.ID).Msg("Failed to publish event")
	}
}

func (s *BookingService) notify(ctx context.Context, kind string, booking *models.Booking) {
	if s.notifier == nil {
		return
	}
	// The request may already be gone; the booking is committed either way.
	if err := s.notifier.Enqueue(context.WithoutCancel(ctx), kind, booking); err != nil {
		s.logger.Error().Err(err).Str("kind", kind).Str("booking_id", booking.ID).Msg("Failed to enqueue notification")
	}
}
