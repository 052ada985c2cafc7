package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		ObserveHTTP("/api/bookings", "POST", 201, 15*time.Millisecond)
	})

	before := testutil.ToFloat64(bookingsCreated)
	IncBookingCreated()
	assert.Equal(t, before+1, testutil.ToFloat64(bookingsCreated))

	IncBookingRejected("full")
	assert.Equal(t, float64(1), testutil.ToFloat64(bookingsRejected.WithLabelValues("full")))

	IncStatusChange("Confirmed")
	IncNotification("booking_confirmation", "sent")
	IncRateLimited("bookings")
	assert.Equal(t, float64(1), testutil.ToFloat64(rateLimited.WithLabelValues("bookings")))
	assert.Equal(t, float64(1), testutil.ToFloat64(httpRequests.WithLabelValues("/api/bookings", "POST", "201")))
}
