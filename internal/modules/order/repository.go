package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines order storage. Every method joins the transaction on
// ctx when there is one.
type Repository interface {
	// CreateOrder writes the header and all lines.
	CreateOrder(ctx context.Context, o *Order) error

	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// GetOrderForUpdate loads the order and locks its row until the
	// surrounding transaction ends.
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)

	// ListOrders returns one page of the actor's orders and the unpaged count.
	ListOrders(ctx context.Context, actor Actor, f ListFilter) ([]*Order, int, error)

	// UpdateStatus persists status, timestamps and notes of o only if the
	// stored status still equals from. Otherwise it returns ErrStatusConflict.
	UpdateStatus(ctx context.Context, o *Order, from Status) error

	// SaveRating stores the rating given by party. It returns ErrAlreadyRated
	// when that direction is already set or the order is not completed.
	SaveRating(ctx context.Context, id uuid.UUID, by Party, stars int, comment string) error

	Stats(ctx context.Context, actor Actor, monthStart time.Time) (*Stats, error)
}
