package service

import (
	"context"
	"fmt"
	"strings"

	"tourbook/internal/domain"
	"tourbook/internal/models"

	"github.com/rs/zerolog"
)

const (
	maxContactMessageLength = 5000
	defaultContactListLimit = 100
)

type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type ContactService struct {
	repo   domain.ContactRepository
	logger *zerolog.Logger
}

func NewContactService(repo domain.ContactRepository, logger *zerolog.Logger) *ContactService {
	return &ContactService{repo: repo, logger: logger}
}

func (s *ContactService) Submit(ctx context.Context, req ContactRequest) (*models.ContactMessage, error) {
	msg := &models.ContactMessage{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Message: strings.TrimSpace(req.Message),
	}
	if msg.Name == "" || msg.Email == "" || msg.Message == "" {
		return nil, validationf("Name, email and message are required")
	}
	email, err := normalizeEmail(msg.Email)
	if err != nil {
		return nil, err
	}
	msg.Email = email
	if len(msg.Message) > maxContactMessageLength {
		return nil, validationf("Message is too long")
	}

	if err := s.repo.CreateContactMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("save contact message: %w", err)
	}

	s.logger.Info().Int64("contact_id", msg.ID).Msg("Contact message received")
	return msg, nil
}

// List returns the most recent messages first.
func (s *ContactService) List(ctx context.Context, limit int) ([]models.ContactMessage, error) {
	if limit <= 0 {
		limit = defaultContactListLimit
	}
	msgs, err := s.repo.ListContactMessages(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	return msgs, nil
}
