package activity

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores activity records. Records are never updated or deleted.
type Repository interface {
	Append(ctx context.Context, rec *Record) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Record, error)
}
