package order

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/campo-directo-backend/internal/modules/product"
)

// StockLedger decrements product stock, flooring at zero.
type StockLedger interface {
	DecrementStock(ctx context.Context, productID uuid.UUID, qty decimal.Decimal) (product.StockLevel, error)
}

// Settle removes the quantities of a completed order from stock. Repeated
// products are summed into one decrement and products are visited in
// ascending id order so concurrent settlements lock rows in the same order.
// It must run inside the completing transition's transaction.
func Settle(ctx context.Context, ledger StockLedger, lines []*OrderLine) ([]product.StockLevel, error) {
	qty := make(map[uuid.UUID]decimal.Decimal, len(lines))
	for _, l := range lines {
		qty[l.ProductID] = qty[l.ProductID].Add(l.Quantity)
	}

	ids := make([]uuid.UUID, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

	levels := make([]product.StockLevel, 0, len(ids))
	for _, id := range ids {
		lvl, err := ledger.DecrementStock(ctx, id, qty[id])
		if err != nil {
			return nil, fmt.Errorf("settle product %s: %w", id, err)
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}
