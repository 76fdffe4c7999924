package activity

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

var ErrInvalidRecord = errors.New("activity record requires user, kind and description")

// Service appends to and reads the activity feed.
type Service interface {
	Log(ctx context.Context, rec *Record) error
	List(ctx context.Context, userID uuid.UUID, limit int) ([]*Record, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Log assigns an id when missing and appends rec.
func (s *service) Log(ctx context.Context, rec *Record) error {
	if rec.UserID == uuid.Nil || rec.Kind == "" || strings.TrimSpace(rec.Description) == "" {
		return ErrInvalidRecord
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	return s.repo.Append(ctx, rec)
}

func (s *service) List(ctx context.Context, userID uuid.UUID, limit int) ([]*Record, error) {
	switch {
	case limit <= 0:
		limit = defaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}
	return s.repo.ListByUser(ctx, userID, limit)
}
