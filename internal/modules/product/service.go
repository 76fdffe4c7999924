package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/activity"
)

// Service defines product listing, stock and availability logic.
type Service interface {
	CreateProduct(ctx context.Context, farmerID uuid.UUID, req CreateProductRequest) (*Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListFarmerProducts(ctx context.Context, farmerID uuid.UUID) ([]*Product, error)

	// UpdateStock sets the absolute stock of a product owned by farmerID.
	UpdateStock(ctx context.Context, farmerID, productID uuid.UUID, stock decimal.Decimal) (*Product, error)

	// CheckAvailability never writes. The error is reserved for storage failures;
	// every business refusal comes back as Availability with a Reason.
	CheckAvailability(ctx context.Context, productID uuid.UUID, qty decimal.Decimal) (Availability, error)

	DecrementStock(ctx context.Context, productID uuid.UUID, qty decimal.Decimal) (StockLevel, error)
}

// ActivityLog receives a record for every stock change.
type ActivityLog interface {
	Log(ctx context.Context, rec *activity.Record) error
}

// UnitOfWork runs fn in one transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type service struct {
	repo       Repository
	activities ActivityLog
	uow        UnitOfWork
	logger     *zap.Logger
}

// NewService creates a new product service.
func NewService(repo Repository, activities ActivityLog, uow UnitOfWork, logger *zap.Logger) Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repo: repo, activities: activities, uow: uow, logger: logger.Named("product")}
}

func (s *service) CreateProduct(ctx context.Context, farmerID uuid.UUID, req CreateProductRequest) (*Product, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if !req.PricePerUnit.IsPositive() {
		return nil, fmt.Errorf("%w: price_per_unit must be positive", ErrInvalidProduct)
	}
	if req.Stock.IsNegative() || req.MinSaleQuantity.IsNegative() {
		return nil, fmt.Errorf("%w: stock and min_sale_quantity must not be negative", ErrInvalidProduct)
	}
	maxQty := req.MaxSaleQuantity
	if maxQty.IsZero() {
		maxQty = decimal.NewFromInt(1000)
	}
	if maxQty.LessThan(req.MinSaleQuantity) {
		return nil, fmt.Errorf("%w: max_sale_quantity is below min_sale_quantity", ErrInvalidProduct)
	}
	status := Status(strings.ToLower(req.Status))
	if status == "" {
		status = StatusAvailable
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidProduct, req.Status)
	}
	if !req.Stock.IsPositive() && status.Sellable() {
		status = StatusOutOfStock
	}
	unit := strings.TrimSpace(req.Unit)
	if unit == "" {
		unit = DefaultUnit
	}

	p := &Product{
		ID:              uuid.New(),
		FarmerID:        farmerID,
		Name:            name,
		Unit:            unit,
		PricePerUnit:    req.PricePerUnit,
		Stock:           req.Stock,
		MinSaleQuantity: req.MinSaleQuantity,
		MaxSaleQuantity: maxQty,
		Status:          status,
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	return s.repo.GetProductByID(ctx, id)
}

func (s *service) ListFarmerProducts(ctx context.Context, farmerID uuid.UUID) ([]*Product, error) {
	return s.repo.ListProductsByFarmer(ctx, farmerID)
}

func (s *service) UpdateStock(ctx context.Context, farmerID, productID uuid.UUID, stock decimal.Decimal) (*Product, error) {
	if stock.IsNegative() {
		return nil, fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}

	var p *Product
	err := s.uow.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetProductByID(ctx, productID)
		if err != nil {
			return err
		}
		if p.FarmerID != farmerID {
			return ErrNotOwner
		}

		status := StatusAvailable
		if !stock.IsPositive() {
			status = StatusOutOfStock
		}
		if err := s.repo.SetStock(ctx, productID, stock, status); err != nil {
			return err
		}
		p.Stock, p.Status = stock, status

		kind := activity.KindInfo
		if status == StatusOutOfStock {
			kind = activity.KindWarning
		}
		return s.activities.Log(ctx, &activity.Record{
			UserID:      farmerID,
			Kind:        kind,
			Description: fmt.Sprintf("Stock for %s set to %s %s", p.Name, stock.String(), p.Unit),
			EntityType:  activity.EntityProduct,
			EntityID:    p.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("stock updated",
		zap.String("product_id", productID.String()),
		zap.String("stock", stock.String()),
		zap.String("status", string(p.Status)))
	return p, nil
}

func (s *service) CheckAvailability(ctx context.Context, productID uuid.UUID, qty decimal.Decimal) (Availability, error) {
	p, err := s.repo.GetProductByID(ctx, productID)
	if errors.Is(err, ErrProductNotFound) {
		return Availability{Reason: "product not found"}, nil
	}
	if err != nil {
		return Availability{}, err
	}
	return Evaluate(p, qty), nil
}

func (s *service) DecrementStock(ctx context.Context, productID uuid.UUID, qty decimal.Decimal) (StockLevel, error) {
	return s.repo.DecrementStock(ctx, productID, qty)
}

// Evaluate applies the availability rules to a loaded product.
func Evaluate(p *Product, qty decimal.Decimal) Availability {
	switch {
	case !p.Status.Sellable():
		return Availability{Reason: fmt.Sprintf("product %s is not available (status %s)", p.Name, p.Status)}
	case p.Stock.LessThan(qty):
		return Availability{Reason: fmt.Sprintf("insufficient stock for %s: available %s %s", p.Name, p.Stock.String(), p.Unit)}
	case qty.LessThan(p.MinSaleQuantity):
		return Availability{Reason: fmt.Sprintf("minimum quantity for %s is %s %s", p.Name, p.MinSaleQuantity.String(), p.Unit)}
	case qty.GreaterThan(p.MaxSaleQuantity):
		return Availability{Reason: fmt.Sprintf("maximum quantity for %s is %s %s", p.Name, p.MaxSaleQuantity.String(), p.Unit)}
	}
	return Availability{Available: true, Product: p}
}
