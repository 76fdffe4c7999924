package activity

import (
	"time"

	"github.com/google/uuid"
)

// Kind classifies an activity record for display in the user's feed.
type Kind string

const (
	KindOrder     Kind = "order"
	KindInfo      Kind = "info"
	KindCompleted Kind = "completed"
	KindSuccess   Kind = "success"
	KindWarning   Kind = "warning"
)

const (
	EntityOrder   = "order"
	EntityProduct = "product"
)

// Record is one append-only entry in a user's activity feed.
type Record struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	Kind        Kind      `json:"kind"`
	Description string    `json:"description"`
	EntityType  string    `json:"entity_type"`
	EntityID    string    `json:"entity_id"`
	CreatedAt   time.Time `json:"created_at"`
}
