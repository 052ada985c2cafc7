package domain

import (
	"context"
	"time"

	"tourbook/internal/models"
)

// BookingRepository is the storage the booking engine needs.
type BookingRepository interface {
	CountBookings(ctx context.Context, tourID, travelDate string, activeOnly bool) (int, error)
	CreateBookingWithLock(ctx context.Context, booking *models.Booking, capacity int, activeOnly bool) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatusWithVersion(
		ctx context.Context, id string, fromVersion int64, status models.BookingStatus, adminNotes *string,
	) error
	ListBookings(ctx context.Context) ([]*models.Booking, error)
	ListUserBookings(ctx context.Context, userID string) ([]*models.Booking, error)
	ListBookingsByDateRange(ctx context.Context, from, to string) ([]*models.Booking, error)
}

type AccountRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateAdmin(ctx context.Context, admin *models.Admin) error
	GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error)
	CountAdmins(ctx context.Context) (int, error)
}

type ContactRepository interface {
	CreateContactMessage(ctx context.Context, msg *models.ContactMessage) error
	ListContactMessages(ctx context.Context, limit int) ([]models.ContactMessage, error)
}

type NotificationQueueRepository interface {
	CreateNotificationTask(ctx context.Context, task *models.NotificationTask) error
	GetPendingNotificationTasks(ctx context.Context, limit int) ([]models.NotificationTask, error)
	ClaimNotificationTask(ctx context.Context, id int64) (bool, error)
	ResetStaleNotificationTasks(ctx context.Context) (int64, error)
	UpdateNotificationTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

type RateLimitStore interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload any) error
}

// NotificationDispatcher accepts outbound messages for later delivery.
type NotificationDispatcher interface {
	Enqueue(ctx context.Context, kind string, booking *models.Booking) error
}

// Mailer delivers one rendered message.
type Mailer interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) error
}
