package product

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the listing lifecycle state of a product.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusSeasonal   Status = "seasonal"
	StatusOutOfStock Status = "out_of_stock"
	StatusInactive   Status = "inactive"
)

// Sellable reports whether products in this state may be ordered.
func (s Status) Sellable() bool { return s == StatusAvailable || s == StatusSeasonal }

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusSeasonal, StatusOutOfStock, StatusInactive:
		return true
	}
	return false
}

const DefaultUnit = "kg"

// Product is a farmer's listing.
type Product struct {
	ID              uuid.UUID       `json:"id"`
	FarmerID        uuid.UUID       `json:"farmer_id"`
	Name            string          `json:"name"`
	Unit            string          `json:"unit"`
	PricePerUnit    decimal.Decimal `json:"price_per_unit"`
	Stock           decimal.Decimal `json:"stock"`
	MinSaleQuantity decimal.Decimal `json:"min_sale_quantity"`
	MaxSaleQuantity decimal.Decimal `json:"max_sale_quantity"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// StockLevel is a product's stock after a write.
type StockLevel struct {
	ProductID uuid.UUID       `json:"product_id"`
	Stock     decimal.Decimal `json:"stock"`
	Status    Status          `json:"status"`
}

// Availability is the answer to "can this product fill a line of quantity q".
// Reason is empty when Available is true.
type Availability struct {
	Available bool     `json:"available"`
	Reason    string   `json:"reason,omitempty"`
	Product   *Product `json:"product,omitempty"`
}

// CreateProductRequest holds data for listing a product.
type CreateProductRequest struct {
	Name            string          `json:"name"`
	Unit            string          `json:"unit"`
	PricePerUnit    decimal.Decimal `json:"price_per_unit"`
	Stock           decimal.Decimal `json:"stock"`
	MinSaleQuantity decimal.Decimal `json:"min_sale_quantity"`
	MaxSaleQuantity decimal.Decimal `json:"max_sale_quantity"`
	Status          string          `json:"status"`
}

// UpdateStockRequest sets the absolute stock of a product.
type UpdateStockRequest struct {
	Stock decimal.Decimal `json:"stock"`
}
