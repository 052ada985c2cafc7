package service

import (
	"context"

	"tourbook/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) CountBookings(ctx context.Context, tourID, date string, activeOnly bool) (int, error) {
	args := m.Called(ctx, tourID, date, activeOnly)
	return args.Int(0), args.Error(1)
}

func (m *mockBookingRepo) CreateBookingWithLock(ctx context.Context, b *models.Booking, capacity int, activeOnly bool) error {
	return m.Called(ctx, b, capacity, activeOnly).Error(0)
}

func (m *mockBookingRepo) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) UpdateBookingStatusWithVersion(
	ctx context.Context, id string, version int64, status models.BookingStatus, notes *string,
) error {
	return m.Called(ctx, id, version, status, notes).Error(0)
}

func (m *mockBookingRepo) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) ListUserBookings(ctx context.Context, userID string) ([]*models.Booking, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) ListBookingsByDateRange(ctx context.Context, from, to string) ([]*models.Booking, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload any) error {
	return m.Called(eventType, payload).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Enqueue(ctx context.Context, kind string, booking *models.Booking) error {
	return m.Called(ctx, kind, booking).Error(0)
}
