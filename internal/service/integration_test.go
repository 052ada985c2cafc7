package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"tourbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoredBookingService(t *testing.T, strict, activeOnly bool) *BookingService {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db := setupDB(t)
	availability := NewAvailabilityService(db, CapacityPolicy{Default: 3}, activeOnly, &logger)
	return NewBookingService(db, availability, nil, nil, strict, &logger)
}

func TestBookingLifecycleWithStorage(t *testing.T) {
	svc := newStoredBookingService(t, false, false)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		req := validRequest()
		req.Email = fmt.Sprintf("guest%d@example.com", i)
		b, err := svc.CreateBooking(ctx, req, nil)
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	_, err := svc.CreateBooking(ctx, validRequest(), nil)
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Tour fully booked for 2025-06-01", ce.Message)

	avail, err := svc.availability.CheckAvailability(ctx, "T1", "2025-06-01", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, avail.BookedCount)
	assert.False(t, avail.IsAvailable)

	// Cancelled bookings still hold their seat.
	_, err = svc.UpdateStatus(ctx, ids[0], "Cancelled", nil)
	require.NoError(t, err)
	_, err = svc.CreateBooking(ctx, validRequest(), nil)
	require.ErrorAs(t, err, &ce)

	notes := "back from cancellation"
	updated, err := svc.UpdateStatus(ctx, ids[0], "Confirmed", &notes)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
	assert.Equal(t, notes, updated.AdminNotes)

	updated, err = svc.UpdateStatus(ctx, ids[0], "Pending", nil)
	require.NoError(t, err)
	assert.Equal(t, notes, updated.AdminNotes)

	list, err := svc.ListBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, list.Stats.Total)
	assert.Equal(t, 3, list.Stats.Pending)
}

func TestActiveOnlyCountingFreesSeats(t *testing.T) {
	svc := newStoredBookingService(t, true, true)
	ctx := context.Background()

	var first string
	for i := 0; i < 3; i++ {
		b, err := svc.CreateBooking(ctx, validRequest(), nil)
		require.NoError(t, err)
		if i == 0 {
			first = b.ID
		}
	}

	_, err := svc.UpdateStatus(ctx, first, "Rejected", nil)
	require.NoError(t, err)

	_, err = svc.CreateBooking(ctx, validRequest(), nil)
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, first, "Pending", nil)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestConcurrentAdmissionNeverOverbooks(t *testing.T) {
	svc := newStoredBookingService(t, false, false)
	ctx := context.Background()

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		admitted  int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateBooking(ctx, validRequest(), nil)
			var ce *ConflictError
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.As(err, &ce):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, admitted)
	assert.Equal(t, attempts-3, conflicts)
}
