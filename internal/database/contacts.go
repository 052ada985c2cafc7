package database

import (
	"context"
	"fmt"
	"time"

	"tourbook/internal/models"
)

func (db *DB) CreateContactMessage(ctx context.Context, msg *models.ContactMessage) error {
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx,
		`INSERT INTO contact_messages (name, email, message, created_at) VALUES (?, ?, ?, ?)`,
		msg.Name, msg.Email, msg.Message, now)
	if err != nil {
		return fmt.Errorf("failed to create contact message: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	msg.ID = id
	msg.CreatedAt = now
	return nil
}

func (db *DB) ListContactMessages(ctx context.Context, limit int) ([]models.ContactMessage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, email, message, created_at FROM contact_messages ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ContactMessage
	for rows.Next() {
		var m models.ContactMessage
		if err := rows.Scan(&m.ID, &m.Name, &m.Email, &m.Message, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
