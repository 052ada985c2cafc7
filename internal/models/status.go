package models

import "fmt"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "Pending"
	StatusConfirmed BookingStatus = "Confirmed"
	StatusRejected  BookingStatus = "Rejected"
	StatusCancelled BookingStatus = "Cancelled"
)

// AllStatuses lists the statuses in display order.
var AllStatuses = []BookingStatus{StatusPending, StatusConfirmed, StatusRejected, StatusCancelled}

// strictTransitions is the lifecycle graph used when strict transitions are enabled.
var strictTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusRejected, StatusCancelled},
	StatusConfirmed: {StatusCancelled},
	StatusRejected:  {},
	StatusCancelled: {},
}

func (s BookingStatus) IsValid() bool {
	_, ok := strictTransitions[s]
	return ok
}

// IsActive reports whether the booking still holds a slot.
func (s BookingStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransitionTo reports whether the strict lifecycle graph allows moving to target.
// Re-applying the current status is always allowed.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	if !target.IsValid() {
		return false
	}
	if s == target {
		return true
	}
	for _, next := range strictTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	next, ok := strictTransitions[s]
	return !ok || len(next) == 0
}

func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus accepts only the exact enumerated values.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	status := BookingStatus(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %q", raw)
	}
	return status, nil
}
