package order

import "github.com/shopspring/decimal"

// currencyPlaces is the precision money is stored with.
const currencyPlaces = 2

// Subtotal is quantity times unit price at currency precision.
func Subtotal(qty, unitPrice decimal.Decimal) decimal.Decimal {
	return qty.Mul(unitPrice).Round(currencyPlaces)
}

// PriceLines fills in every line's subtotal and returns their sum.
func PriceLines(lines []*OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		l.Subtotal = Subtotal(l.Quantity, l.UnitPrice)
		total = total.Add(l.Subtotal)
	}
	return total
}
