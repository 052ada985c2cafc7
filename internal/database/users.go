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

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Email, user.PasswordHash, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.getUser(ctx, `WHERE email = ?`, email)
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	var u models.User
	err := db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at, updated_at FROM users `+where, arg).
		Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (db *DB) CreateAdmin(ctx context.Context, admin *models.Admin) error {
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	if admin.Role == "" {
		admin.Role = models.RoleAdmin
	}
	now := time.Now().UTC()
	_, err := db.ExecContext(ctx,
		`INSERT INTO admins (id, username, email, password_hash, role, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		admin.ID, admin.Username, admin.Email, admin.PasswordHash, admin.Role, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create admin: %w", err)
	}
	admin.CreatedAt = now
	admin.UpdatedAt = now
	return nil
}

func (db *DB) GetAdminByEmail(ctx context.Context, email string) (*models.Admin, error) {
	var a models.Admin
	err := db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, role, created_at, updated_at FROM admins WHERE email = ?`, email).
		Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Role, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return &a, nil
}

func (db *DB) CountAdmins(ctx context.Context) (int, error) {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}
	return count, nil
}
