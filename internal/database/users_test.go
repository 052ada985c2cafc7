package database

import (
	"context"
	"testing"

	"tourbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := &models.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "hash"}
	require.NoError(t, db.CreateUser(ctx, user))
	assert.NotEmpty(t, user.ID)

	byEmail, err := db.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
	assert.Equal(t, "hash", byEmail.PasswordHash)

	byID, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", byID.Name)

	err = db.CreateUser(ctx, &models.User{Name: "Other", Email: "alice@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)

	_, err = db.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdmins(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	count, err := db.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	admin := &models.Admin{Username: "root", Email: "root@example.com", PasswordHash: "hash"}
	require.NoError(t, db.CreateAdmin(ctx, admin))
	assert.Equal(t, models.RoleAdmin, admin.Role)

	got, err := db.GetAdminByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, "root", got.Username)

	assert.ErrorIs(t, db.CreateAdmin(ctx, &models.Admin{Username: "root", Email: "other@example.com", PasswordHash: "x"}), ErrDuplicate)
	assert.ErrorIs(t, db.CreateAdmin(ctx, &models.Admin{Username: "other", Email: "root@example.com", PasswordHash: "x"}), ErrDuplicate)

	count, err = db.CountAdmins(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestContactMessages(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	msg := &models.ContactMessage{Name: "Bob", Email: "bob@example.com", Message: "Hello"}
	require.NoError(t, db.CreateContactMessage(ctx, msg))
	assert.NotZero(t, msg.ID)

	messages, err := db.ListContactMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "Hello", messages[0].Message)
}
