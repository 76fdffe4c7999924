package user

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Role is the marketplace side a user acts on.
type Role string

const (
	RoleFarmer Role = "farmer"
	RoleBuyer  Role = "buyer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool { return r == RoleFarmer || r == RoleBuyer }

// User represents a registered farmer or buyer.
type User struct {
	ID            uuid.UUID       `json:"id"`
	Email         string          `json:"email"`
	PasswordHash  string          `json:"-"`
	FirstName     string          `json:"first_name,omitempty"`
	LastName      string          `json:"last_name,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Role          Role            `json:"role"`
	RatingAverage decimal.Decimal `json:"rating_average"`
	RatingCount   int             `json:"rating_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RatingSummary is the all-time average of the stars a user has received.
type RatingSummary struct {
	Average decimal.Decimal `json:"average"`
	Count   int             `json:"count"`
}

// Add folds one more rating into the running mean, rounded to one decimal.
func (s RatingSummary) Add(stars int) RatingSummary {
	n := decimal.NewFromInt(int64(s.Count))
	sum := s.Average.Mul(n).Add(decimal.NewFromInt(int64(stars)))
	next := s.Count + 1
	return RatingSummary{
		Average: sum.Div(decimal.NewFromInt(int64(next))).Round(1),
		Count:   next,
	}
}

// RegisterRequest is the payload for creating an account.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
}
