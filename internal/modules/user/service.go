package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// Service defines the interface for user-related business logic.
type Service interface {
	RegisterUser(ctx context.Context, req RegisterRequest) (*User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)

	// UpdateRating records one more rating received by the user.
	UpdateRating(ctx context.Context, id uuid.UUID, stars int) (RatingSummary, error)
}

type service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new user service.
func NewService(repo Repository, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: repo, logger: logger.Named("user")}
}

func (s *service) RegisterUser(ctx context.Context, req RegisterRequest) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	if len(req.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}
	role := Role(strings.ToLower(strings.TrimSpace(req.Role)))
	if !role.Valid() {
		return nil, fmt.Errorf("%w: role must be farmer or buyer", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Phone:        strings.TrimSpace(req.Phone),
		Role:         role,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))
	return u, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *service) UpdateRating(ctx context.Context, id uuid.UUID, stars int) (RatingSummary, error) {
	if stars < 1 || stars > 5 {
		return RatingSummary{}, fmt.Errorf("%w: stars must be between 1 and 5", ErrInvalidInput)
	}
	return s.repo.UpdateRating(ctx, id, stars)
}
