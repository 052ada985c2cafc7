package models

const (
	// DateLayout is the canonical travel date format.
	DateLayout = "2006-01-02"

	DefaultAccommodationType = "Standard"
	DefaultNumberOfPeople    = 1

	// NotificationQueueSize is the buffer of the in-memory notification queue.
	NotificationQueueSize = 128
)
