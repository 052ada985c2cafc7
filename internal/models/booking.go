package models

import "time"

type Booking struct {
	ID                string        `json:"id"`
	TourID            string        `json:"tourId"`
	TourName          string        `json:"tourName"`
	UserID            *string       `json:"userId"`
	FullName          string        `json:"fullName"`
	Email             string        `json:"email"`
	Phone             string        `json:"phone"`
	TravelDate        string        `json:"travelDate"` // YYYY-MM-DD
	NumberOfPeople    int           `json:"numberOfPeople"`
	AccommodationType string        `json:"accommodationType"`
	OtherRequirements string        `json:"otherRequirements"`
	Status            BookingStatus `json:"status"`
	AdminNotes        string        `json:"adminNotes,omitempty"`
	Version           int64         `json:"-"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// Availability is the capacity snapshot for one tour on one day.
type Availability struct {
	TourID      string `json:"tourId"`
	Date        string `json:"date"`
	BookedCount int    `json:"bookedCount"`
	Capacity    int    `json:"capacity"`
	IsAvailable bool   `json:"isAvailable"`
}

type BookingStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Rejected  int `json:"rejected"`
	Cancelled int `json:"cancelled"`
}

// Add counts one booking in the given status.
func (s *BookingStats) Add(status BookingStatus) {
	s.Total++
	switch status {
	case StatusPending:
		s.Pending++
	case StatusConfirmed:
		s.Confirmed++
	case StatusRejected:
		s.Rejected++
	case StatusCancelled:
		s.Cancelled++
	}
}

type BookingList struct {
	Bookings []*Booking   `json:"bookings"`
	Stats    BookingStats `json:"stats"`
}
