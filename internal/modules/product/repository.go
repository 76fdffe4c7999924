package product

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrNotOwner        = errors.New("product belongs to another farmer")
	ErrInvalidProduct  = errors.New("invalid product")
)

// Repository defines product data storage. Every method joins the
// transaction carried by ctx, if any.
type Repository interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProductsByFarmer(ctx context.Context, farmerID uuid.UUID) ([]*Product, error)
	SetStock(ctx context.Context, id uuid.UUID, stock decimal.Decimal, status Status) error

	// DecrementStock subtracts qty, flooring at zero and flipping the status
	// to out_of_stock when nothing is left, in a single statement.
	DecrementStock(ctx context.Context, id uuid.UUID, qty decimal.Decimal) (StockLevel, error)
}
