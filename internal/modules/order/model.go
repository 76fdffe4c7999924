package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/user"
)

// Status represents the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

// Active reports whether the order is still being worked on.
func (s Status) Active() bool { return s.Valid() && !s.Terminal() }

// PaymentMethod records how the buyer intends to pay on delivery.
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCard     PaymentMethod = "card"
	PaymentOther    PaymentMethod = "other"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentTransfer, PaymentCard, PaymentOther:
		return true
	}
	return false
}

// Order is a buyer's purchase from a single farmer.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	OrderNumber     string          `json:"order_number"`
	BuyerID         uuid.UUID       `json:"buyer_id"`
	SellerID        uuid.UUID       `json:"seller_id"`
	Total           decimal.Decimal `json:"total"`
	Status          Status          `json:"status"`
	DeliveryAddress string          `json:"delivery_address"`
	ContactPhone    string          `json:"contact_phone"`
	ScheduledDate   time.Time       `json:"scheduled_date"`
	ScheduledTime   string          `json:"scheduled_time,omitempty"`
	PaymentMethod   PaymentMethod   `json:"payment_method"`
	BuyerNotes      string          `json:"buyer_notes,omitempty"`
	SellerNotes     string          `json:"seller_notes,omitempty"`

	SellerRating        *int   `json:"seller_rating,omitempty"` // given by the buyer
	BuyerRating         *int   `json:"buyer_rating,omitempty"`  // given by the seller
	SellerRatingComment string `json:"seller_rating_comment,omitempty"`
	BuyerRatingComment  string `json:"buyer_rating_comment,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	PreparingAt *time.Time `json:"preparing_at,omitempty"`
	ReadyAt     *time.Time `json:"ready_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Lines []*OrderLine `json:"items"`
}

// OrderLine is one product within an order. Lines never change after creation.
type OrderLine struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	Position  int             `json:"position"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Notes     string          `json:"notes,omitempty"`
}

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID uuid.UUID
	Role   user.Role
}

// LineRequest is one requested product line. UnitPrice, when set, overrides
// the product's current price.
type LineRequest struct {
	ProductID uuid.UUID        `json:"product_id"`
	Quantity  decimal.Decimal  `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Notes     string           `json:"notes,omitempty"`
}

// CreateOrderRequest is the payload for placing an order.
type CreateOrderRequest struct {
	SellerID        uuid.UUID     `json:"seller_id"`
	Lines           []LineRequest `json:"items"`
	DeliveryAddress string        `json:"delivery_address"`
	ContactPhone    string        `json:"contact_phone"`
	ScheduledDate   string        `json:"scheduled_date"` // YYYY-MM-DD
	ScheduledTime   string        `json:"scheduled_time,omitempty"`
	PaymentMethod   string        `json:"payment_method,omitempty"`
	Notes           string        `json:"notes,omitempty"`
}

// UpdateStatusRequest is the payload for advancing an order's status.
type UpdateStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

// RateRequest is the payload for rating the other party of a completed order.
type RateRequest struct {
	Stars   int    `json:"stars"`
	Comment string `json:"comment,omitempty"`
}

// RateEligibility answers whether the caller may still rate an order.
type RateEligibility struct {
	CanRate bool   `json:"can_rate"`
	Reason  string `json:"reason,omitempty"`
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// ListFilter narrows a party's order listing. Zero values mean "no filter".
type ListFilter struct {
	Statuses []Status
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

// Normalize clamps paging to sane bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultPageSize
	case f.Limit > MaxPageSize:
		f.Limit = MaxPageSize
	}
	return f
}

func (f ListFilter) Offset() int { return (f.Page - 1) * f.Limit }

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Page is one page of orders.
type Page struct {
	Orders     []*Order   `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Stats summarises a party's orders. Revenue means sales for farmers and
// spend for buyers; Counterparties counts distinct buyers or farmers.
type Stats struct {
	Role             user.Role       `json:"role"`
	TotalOrders      int             `json:"total_orders"`
	ByStatus         map[Status]int  `json:"by_status"`
	ActiveOrders     int             `json:"active_orders"`
	CompletedRevenue decimal.Decimal `json:"completed_revenue"`
	MonthRevenue     decimal.Decimal `json:"month_revenue"`
	Counterparties   int             `json:"counterparties"`
	RatingAverage    decimal.Decimal `json:"rating_average"`
	RatingCount      int             `json:"rating_count"`
}

// Event is published after an order write commits.
type Event struct {
	Type           string    `json:"type"`
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	BuyerID        uuid.UUID `json:"buyer_id"`
	SellerID       uuid.UUID `json:"seller_id"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	CurrentStatus  Status    `json:"current_status"`
	ActorID        uuid.UUID `json:"actor_id"`
	Stars          int       `json:"stars,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

const (
	EventCreated       = "order.created"
	EventStatusChanged = "order.status.changed"
	EventRated         = "order.rated"
)
