package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"tourbook/internal/database"
	"tourbook/internal/events"
	"tourbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type bookingFixture struct {
	repo      *mockBookingRepo
	publisher *mockPublisher
	notifier  *mockNotifier
	svc       *BookingService
}

func newBookingFixture(strict bool) *bookingFixture {
	logger := zerolog.New(io.Discard)
	repo := new(mockBookingRepo)
	publisher := new(mockPublisher)
	notifier := new(mockNotifier)
	availability := NewAvailabilityService(repo, CapacityPolicy{Default: 3, PerTour: map[string]int{"VIP": 1}}, false, &logger)
	return &bookingFixture{
		repo:      repo,
		publisher: publisher,
		notifier:  notifier,
		svc:       NewBookingService(repo, availability, publisher, notifier, strict, &logger),
	}
}

func validRequest() CreateBookingRequest {
	return CreateBookingRequest{
		TourID:     "T1",
		TourName:   "Alps",
		FullName:   "Jane Doe",
		Email:      "jane@example.com",
		TravelDate: "2025-06-01",
	}
}

func TestCreateBooking(t *testing.T) {
	f := newBookingFixture(false)
	ctx := context.Background()

	f.repo.On("CreateBookingWithLock", ctx, mock.AnythingOfType("*models.Booking"), 3, false).
		Run(func(args mock.Arguments) {
			args.Get(1).(*models.Booking).ID = "b-1"
		}).Return(nil).Once()
	f.publisher.On("PublishJSON", events.EventBookingCreated, mock.Anything).Return(nil).Once()
	f.notifier.On("Enqueue", mock.Anything, models.NotificationBookingConfirmation, mock.Anything).Return(nil).Once()
	f.notifier.On("Enqueue", mock.Anything, models.NotificationAdminNewBooking, mock.Anything).Return(nil).Once()

	userID := "u-1"
	req := validRequest()
	req.TravelDate = "2025-06-01T18:00:00Z"
	b, err := f.svc.CreateBooking(ctx, req, &userID)
	require.NoError(t, err)

	assert.Equal(t, "b-1", b.ID)
	assert.Equal(t, "2025-06-01", b.TravelDate)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, 1, b.NumberOfPeople)
	assert.Equal(t, "Standard", b.AccommodationType)
	assert.Equal(t, &userID, b.UserID)

	f.repo.AssertExpectations(t)
	f.publisher.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestCreateBookingPerTourCapacity(t *testing.T) {
	f := newBookingFixture(false)
	ctx := context.Background()

	f.repo.On("CreateBookingWithLock", ctx, mock.Anything, 1, false).Return(database.ErrNotAvailable).Once()

	req := validRequest()
	req.TourID = "VIP"
	_, err := f.svc.CreateBooking(ctx, req, nil)

	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Tour fully booked for 2025-06-01", ce.Message)
	f.publisher.AssertNotCalled(t, "PublishJSON", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateBookingValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateBookingRequest)
		want   string
	}{
		{"missing tour id", func(r *CreateBookingRequest) { r.TourID = "" }, "Required booking information missing"},
		{"missing tour name", func(r *CreateBookingRequest) { r.TourName = "  " }, "Required booking information missing"},
		{"missing name", func(r *CreateBookingRequest) { r.FullName = "" }, "Required booking information missing"},
		{"missing email", func(r *CreateBookingRequest) { r.Email = "" }, "Required booking information missing"},
		{"missing date", func(r *CreateBookingRequest) { r.TravelDate = "" }, "Required booking information missing"},
		{"bad date", func(r *CreateBookingRequest) { r.TravelDate = "not-a-date" }, "Invalid travel date"},
		{"zero people", func(r *CreateBookingRequest) { r.NumberOfPeople = intPtr(0) }, "Number of people must be at least 1"},
		{"negative people", func(r *CreateBookingRequest) { r.NumberOfPeople = intPtr(-2) }, "Number of people must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(false)
			req := validRequest()
			tt.mutate(&req)

			_, err := f.svc.CreateBooking(context.Background(), req, nil)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.want, ve.Message)
			f.repo.AssertNotCalled(t, "CreateBookingWithLock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCreateBookingSideEffectFailuresIgnored(t *testing.T) {
	f := newBookingFixture(false)
	ctx := context.Background()

	f.repo.On("CreateBookingWithLock", ctx, mock.Anything, 3, false).Return(nil).Once()
	f.publisher.On("PublishJSON", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	f.notifier.On("Enqueue", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("queue down"))

	req := validRequest()
	req.NumberOfPeople = intPtr(4)
	req.AccommodationType = "Deluxe"
	b, err := f.svc.CreateBooking(ctx, req, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, b.NumberOfPeople)
	assert.Equal(t, "Deluxe", b.AccommodationType)
	assert.Nil(t, b.UserID)
}

func TestCreateBookingStorageError(t *testing.T) {
	f := newBookingFixture(false)
	f.repo.On("CreateBookingWithLock", mock.Anything, mock.Anything, 3, false).Return(errors.New("disk full")).Once()

	_, err := f.svc.CreateBooking(context.Background(), validRequest(), nil)
	require.Error(t, err)
	var ce *ConflictError
	assert.False(t, errors.As(err, &ce))
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("Unrestricted", func(t *testing.T) {
		f := newBookingFixture(false)
		current := &models.Booking{ID: "b-1", Status: models.StatusConfirmed, Version: 2, Email: "jane@example.com"}
		updated := &models.Booking{ID: "b-1", Status: models.StatusPending, Version: 3, Email: "jane@example.com", AdminNotes: "reopened"}
		notes := "reopened"

		f.repo.On("GetBooking", ctx, "b-1").Return(current, nil).Once()
		f.repo.On("UpdateBookingStatusWithVersion", ctx, "b-1", int64(2), models.StatusPending, &notes).Return(nil).Once()
		f.repo.On("GetBooking", ctx, "b-1").Return(updated, nil).Once()
		f.publisher.On("PublishJSON", events.EventBookingStatusChanged, mock.MatchedBy(func(p events.BookingEventPayload) bool {
			return p.PreviousStatus == "Confirmed" && p.Status == "Pending"
		})).Return(nil).Once()
		f.notifier.On("Enqueue", mock.Anything, models.NotificationStatusUpdate, updated).Return(nil).Once()

		got, err := f.svc.UpdateStatus(ctx, "b-1", "Pending", &notes)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Equal(t, "reopened", got.AdminNotes)

		f.repo.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
		f.notifier.AssertExpectations(t)
	})

	t.Run("InvalidStatus", func(t *testing.T) {
		f := newBookingFixture(false)
		for _, s := range []string{"", "confirmed", "Done"} {
			_, err := f.svc.UpdateStatus(ctx, "b-1", s, nil)
			var ve *ValidationError
			assert.ErrorAs(t, err, &ve)
		}
		f.repo.AssertNotCalled(t, "GetBooking", mock.Anything, mock.Anything)
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newBookingFixture(false)
		f.repo.On("GetBooking", ctx, "missing").Return(nil, database.ErrNotFound).Once()

		_, err := f.svc.UpdateStatus(ctx, "missing", "Confirmed", nil)
		var nf *NotFoundError
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("StrictRejectsTerminal", func(t *testing.T) {
		f := newBookingFixture(true)
		f.repo.On("GetBooking", ctx, "b-1").Return(&models.Booking{ID: "b-1", Status: models.StatusCancelled, Version: 1}, nil).Once()

		_, err := f.svc.UpdateStatus(ctx, "b-1", "Confirmed", nil)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Message, "Cancelled")
		f.repo.AssertNotCalled(t, "UpdateBookingStatusWithVersion", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("RetriesConcurrentModification", func(t *testing.T) {
		f := newBookingFixture(false)
		f.repo.On("GetBooking", ctx, "b-1").Return(&models.Booking{ID: "b-1", Status: models.StatusPending, Version: 1}, nil).Once()
		f.repo.On("UpdateBookingStatusWithVersion", ctx, "b-1", int64(1), models.StatusConfirmed, (*string)(nil)).
			Return(database.ErrConcurrentModification).Once()
		f.repo.On("GetBooking", ctx, "b-1").Return(&models.Booking{ID: "b-1", Status: models.StatusPending, Version: 2}, nil).Once()
		f.repo.On("UpdateBookingStatusWithVersion", ctx, "b-1", int64(2), models.StatusConfirmed, (*string)(nil)).Return(nil).Once()
		f.repo.On("GetBooking", ctx, "b-1").Return(&models.Booking{ID: "b-1", Status: models.StatusConfirmed, Version: 3}, nil).Once()
		f.publisher.On("PublishJSON", mock.Anything, mock.Anything).Return(nil)
		f.notifier.On("Enqueue", mock.Anything, mock.Anything, mock.Anything).Return(nil)

		got, err := f.svc.UpdateStatus(ctx, "b-1", "Confirmed", nil)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, got.Status)
		f.repo.AssertExpectations(t)
	})

	t.Run("GivesUpAfterRepeatedConflicts", func(t *testing.T) {
		f := newBookingFixture(false)
		f.repo.On("GetBooking", ctx, "b-1").Return(&models.Booking{ID: "b-1", Status: models.StatusPending, Version: 1}, nil)
		f.repo.On("UpdateBookingStatusWithVersion", ctx, "b-1", int64(1), models.StatusRejected, (*string)(nil)).
			Return(database.ErrConcurrentModification)

		_, err := f.svc.UpdateStatus(ctx, "b-1", "Rejected", nil)
		var ce *ConflictError
		assert.ErrorAs(t, err, &ce)
		f.repo.AssertNumberOfCalls(t, "UpdateBookingStatusWithVersion", maxStatusUpdateAttempts)
	})
}

func TestListBookings(t *testing.T) {
	f := newBookingFixture(false)
	ctx := context.Background()

	f.repo.On("ListBookings", ctx).Return([]*models.Booking{
		{ID: "3", Status: models.StatusPending},
		{ID: "2", Status: models.StatusConfirmed},
		{ID: "1", Status: models.StatusCancelled},
	}, nil).Once()

	list, err := f.svc.ListBookings(ctx)
	require.NoError(t, err)
	assert.Len(t, list.Bookings, 3)
	assert.Equal(t, models.BookingStats{Total: 3, Pending: 1, Confirmed: 1, Cancelled: 1}, list.Stats)
}

func TestBookingsForExport(t *testing.T) {
	f := newBookingFixture(false)
	ctx := context.Background()

	f.repo.On("ListBookingsByDateRange", ctx, "2025-06-01", "2025-06-30").Return([]*models.Booking{{ID: "1"}}, nil).Once()
	got, err := f.svc.BookingsForExport(ctx, "2025-06-01", "2025/06/30", 366)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	var ve *ValidationError
	_, err = f.svc.BookingsForExport(ctx, "2025-06-30", "2025-06-01", 366)
	assert.ErrorAs(t, err, &ve)
	_, err = f.svc.BookingsForExport(ctx, "bad", "2025-06-01", 366)
	assert.ErrorAs(t, err, &ve)
	_, err = f.svc.BookingsForExport(ctx, "2024-01-01", "2025-06-01", 30)
	assert.ErrorAs(t, err, &ve)
}
