package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tourbook/internal/models"

	"github.com/google/uuid"
)

const bookingColumns = `id, tour_id, tour_name, user_id, full_name, email, phone, travel_date,
	number_of_people, accommodation_type, other_requirements, status, admin_notes,
	version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID, &b.TourID, &b.TourName, &b.UserID, &b.FullName, &b.Email, &b.Phone, &b.TravelDate,
		&b.NumberOfPeople, &b.AccommodationType, &b.OtherRequirements, &b.Status, &b.AdminNotes,
		&b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func countQuery(activeOnly bool) (string, []any) {
	if activeOnly {
		return `SELECT COUNT(*) FROM bookings WHERE tour_id = ? AND travel_date = ? AND status IN (?, ?)`,
			[]any{models.StatusPending, models.StatusConfirmed}
	}
	return `SELECT COUNT(*) FROM bookings WHERE tour_id = ? AND travel_date = ?`, nil
}

// CountBookings returns the number of bookings held for a tour on a day.
// Unless activeOnly is set every status counts toward capacity.
func (db *DB) CountBookings(ctx context.Context, tourID, travelDate string, activeOnly bool) (int, error) {
	query, extra := countQuery(activeOnly)
	args := append([]any{tourID, travelDate}, extra...)

	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// CreateBookingWithLock counts and inserts inside one write transaction and
// returns ErrNotAvailable when the day is already at capacity.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking, capacity int, activeOnly bool) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, extra := countQuery(activeOnly)
	args := append([]any{booking.TourID, booking.TravelDate}, extra...)

	var bookedCount int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&bookedCount); err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}
	if bookedCount >= capacity {
		return ErrNotAvailable
	}

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.StatusPending
	}
	now := time.Now().UTC()

	insert := `INSERT INTO bookings (` + bookingColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, insert,
		booking.ID,
		booking.TourID,
		booking.TourName,
		booking.UserID,
		booking.FullName,
		booking.Email,
		booking.Phone,
		booking.TravelDate,
		booking.NumberOfPeople,
		booking.AccommodationType,
		booking.OtherRequirements,
		booking.Status,
		booking.AdminNotes,
		1,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}

	booking.Version = 1
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	booking, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return booking, nil
}

// UpdateBookingStatusWithVersion applies the change only if the row is still
// at fromVersion. A nil adminNotes keeps the stored notes.
func (db *DB) UpdateBookingStatusWithVersion(
	ctx context.Context, id string, fromVersion int64, status models.BookingStatus, adminNotes *string,
) error {
	query := `UPDATE bookings
			SET status = ?, admin_notes = COALESCE(?, admin_notes), version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, adminNotes, time.Now().UTC(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		if _, err := db.GetBooking(ctx, id); err != nil {
			return err
		}
		return ErrConcurrentModification
	}
	return nil
}

// ListBookings returns every booking, newest first.
func (db *DB) ListBookings(ctx context.Context) ([]*models.Booking, error) {
	return db.queryBookings(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY created_at DESC, rowid DESC`)
}

func (db *DB) ListUserBookings(ctx context.Context, userID string) ([]*models.Booking, error) {
	return db.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
}

// ListBookingsByDateRange returns bookings whose travel date falls within
// [from, to], both as YYYY-MM-DD.
func (db *DB) ListBookingsByDateRange(ctx context.Context, from, to string) ([]*models.Booking, error) {
	return db.queryBookings(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE travel_date >= ? AND travel_date <= ?
		ORDER BY travel_date ASC, created_at ASC`, from, to)
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	bookings := make([]*models.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}
