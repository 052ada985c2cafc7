package models

import "time"

const (
	NotificationBookingConfirmation = "booking_confirmation"
	NotificationStatusUpdate        = "status_update"
	NotificationAdminNewBooking     = "admin_notification"
)

const (
	TaskStatusPending    = "pending"
	TaskStatusRetry      = "retry"
	TaskStatusProcessing = "processing"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
)

// NotificationTask is an outbox row for one outbound message.
type NotificationTask struct {
	ID          int64      `json:"id"`
	Kind        string     `json:"kind"`
	BookingID   string     `json:"booking_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}
