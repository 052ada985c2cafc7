package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"tourbook/internal/models"
)

const (
	EventBookingCreated       = "booking_created"
	EventBookingStatusChanged = "booking_status_changed"
)

// AllEventTypes lists every event the booking engine emits.
var AllEventTypes = []string{EventBookingCreated, EventBookingStatusChanged}

// BookingEventPayload is the booking snapshot sent to event consumers.
type BookingEventPayload struct {
	BookingID      string    `json:"booking_id"`
	TourID         string    `json:"tour_id"`
	TourName       string    `json:"tour_name"`
	UserID         *string   `json:"user_id,omitempty"`
	Email          string    `json:"email"`
	TravelDate     string    `json:"travel_date"`
	NumberOfPeople int       `json:"number_of_people"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	AdminNotes     string    `json:"admin_notes,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewBookingPayload snapshots a booking for publication.
func NewBookingPayload(b *models.Booking) BookingEventPayload {
	return BookingEventPayload{
		BookingID:      b.ID,
		TourID:         b.TourID,
		TourName:       b.TourName,
		UserID:         b.UserID,
		Email:          b.Email,
		TravelDate:     b.TravelDate,
		NumberOfPeople: b.NumberOfPeople,
		Status:         b.Status.String(),
		AdminNotes:     b.AdminNotes,
		OccurredAt:     time.Now().UTC(),
	}
}

type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs the subscribers of the event type synchronously and joins their errors.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload any) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

func NewJSONEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
