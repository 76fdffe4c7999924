package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrInvalidInput = errors.New("invalid user input")
)

// Repository defines user data storage.
type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)

	// UpdateRating locks the user row and folds stars into the running average.
	UpdateRating(ctx context.Context, id uuid.UUID, stars int) (RatingSummary, error)
}
