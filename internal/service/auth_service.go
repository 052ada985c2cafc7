package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"tourbook/internal/auth"
	"tourbook/internal/database"
	"tourbook/internal/domain"
	"tourbook/internal/models"

	"github.com/rs/zerolog"
)

const (
	minNameLength     = 3
	minPasswordLength = 8
)

type RegisterUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterAdminRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserSession struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type AdminSession struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Admin     *models.Admin `json:"admin"`
}

type AuthService struct {
	repo     domain.AccountRepository
	tokens   *auth.TokenManager
	userTTL  time.Duration
	adminTTL time.Duration
	logger   *zerolog.Logger
}

func NewAuthService(
	repo domain.AccountRepository, tokens *auth.TokenManager, userTTL, adminTTL time.Duration, logger *zerolog.Logger,
) *AuthService {
	return &AuthService{repo: repo, tokens: tokens, userTTL: userTTL, adminTTL: adminTTL, logger: logger}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", validationf("Email is not valid")
	}
	return email, nil
}

func (s *AuthService) RegisterUser(ctx context.Context, req RegisterUserRequest) (*models.User, error) {
	name := strings.TrimSpace(req.Name)
	if len([]rune(name)) < minNameLength {
		return nil, validationf("Name must be at least %d characters", minNameLength)
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, validationf("Password must be at least %d characters", minPasswordLength)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{Name: name, Email: email, PasswordHash: hash}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, validationf("User already exists")
		}
		return nil, fmt.Errorf("register user: %w", err)
	}

	s.logger.Info().Str("user_id", user.ID).Msg("User registered")
	return user, nil
}

// LoginUser returns ErrUnauthorized for unknown emails and wrong passwords alike.
func (s *AuthService) LoginUser(ctx context.Context, req LoginRequest) (*UserSession, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, validationf("Email and password are required")
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("login user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, ErrUnauthorized
	}

	token, expires, err := s.tokens.Issue(user.ID, auth.RoleUser, user.Email, s.userTTL)
	if err != nil {
		return nil, err
	}
	return &UserSession{Token: token, ExpiresAt: expires, User: user}, nil
}

// RegisterAdmin creates an admin account. Only the first admin may register
// without an existing admin identity.
func (s *AuthService) RegisterAdmin(ctx context.Context, req RegisterAdminRequest, callerIsAdmin bool) (*models.Admin, error) {
	if !callerIsAdmin {
		count, err := s.repo.CountAdmins(ctx)
		if err != nil {
			return nil, fmt.Errorf("count admins: %w", err)
		}
		if count > 0 {
			return nil, ErrForbidden
		}
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, validationf("All fields are required")
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if len(req.Password) < minPasswordLength {
		return nil, validationf("Password must be at least %d characters", minPasswordLength)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = models.RoleAdmin
	}

	admin := &models.Admin{Username: username, Email: email, PasswordHash: hash, Role: role}
	if err := s.repo.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, validationf("Admin already exists")
		}
		return nil, fmt.Errorf("register admin: %w", err)
	}

	s.logger.Info().Str("admin_id", admin.ID).Str("username", admin.Username).Msg("Admin registered")
	return admin, nil
}

func (s *AuthService) LoginAdmin(ctx context.Context, req LoginRequest) (*AdminSession, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, ErrUnauthorized
	}

	admin, err := s.repo.GetAdminByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("login admin: %w", err)
	}
	if !auth.CheckPassword(admin.PasswordHash, req.Password) {
		return nil, ErrUnauthorized
	}

	token, expires, err := s.tokens.Issue(admin.ID, auth.RoleAdmin, admin.Email, s.adminTTL)
	if err != nil {
		return nil, err
	}
	return &AdminSession{Token: token, ExpiresAt: expires, Admin: admin}, nil
}

// Authenticate verifies a bearer token and returns its claims.
func (s *AuthService) Authenticate(token string) (*auth.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, &NotFoundError{Message: "User not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
