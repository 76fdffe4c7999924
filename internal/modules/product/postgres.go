package product

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/campo-directo-backend/internal/platform/database"
)

type postgresRepo struct{ db *sql.DB }

func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

const productColumns = `id, farmer_id, name, unit, price_per_unit, stock,
	min_sale_quantity, max_sale_quantity, status, created_at, updated_at`

func (r *postgresRepo) CreateProduct(ctx context.Context, p *Product) error {
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		INSERT INTO products
		  (id, farmer_id, name, unit, price_per_unit, stock, min_sale_quantity, max_sale_quantity, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at, updated_at`,
		p.ID, p.FarmerID, p.Name, p.Unit, p.PricePerUnit, p.Stock,
		p.MinSaleQuantity, p.MaxSaleQuantity, p.Status,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if database.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: farmer %s does not exist", ErrInvalidProduct, p.FarmerID)
	}
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *postgresRepo) GetProductByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	p := &Product{}
	err := scanProduct(database.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id=$1`, id), p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) ListProductsByFarmer(ctx context.Context, farmerID uuid.UUID) ([]*Product, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE farmer_id=$1 ORDER BY created_at DESC`, farmerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Product
	for rows.Next() {
		p := &Product{}
		if err := scanProduct(rows, p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *postgresRepo) SetStock(ctx context.Context, id uuid.UUID, stock decimal.Decimal, status Status) error {
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE products SET stock=$1, status=$2, updated_at=NOW() WHERE id=$3`,
		stock, status, id)
	if err != nil {
		return fmt.Errorf("update stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *postgresRepo) DecrementStock(ctx context.Context, id uuid.UUID, qty decimal.Decimal) (StockLevel, error) {
	lvl := StockLevel{ProductID: id}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		UPDATE products
		SET stock = GREATEST(0, stock - $1),
		    status = CASE WHEN stock - $1 <= 0 THEN 'out_of_stock' ELSE status END,
		    updated_at = NOW()
		WHERE id = $2
		RETURNING stock, status`, qty, id).Scan(&lvl.Stock, &lvl.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return lvl, ErrProductNotFound
	}
	if err != nil {
		return lvl, fmt.Errorf("decrement stock: %w", err)
	}
	return lvl, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner, p *Product) error {
	return row.Scan(&p.ID, &p.FarmerID, &p.Name, &p.Unit, &p.PricePerUnit, &p.Stock,
		&p.MinSaleQuantity, &p.MaxSaleQuantity, &p.Status, &p.CreatedAt, &p.UpdatedAt)
}
