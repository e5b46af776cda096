// Package pricing computes order totals. All arithmetic is decimal, rounded half-up to cents.
package pricing

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var (
	FreeShippingThreshold = decimal.NewFromInt(100)
	FlatShippingCost      = decimal.RequireFromString("9.99")
	TaxRate               = decimal.RequireFromString("0.08")
)

const centsPlaces = 2

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal     decimal.Decimal
	ShippingCost decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
}

// Calculate is pure: no I/O, same input same output.
func Calculate(lines []Line) Totals {
	subtotal := lo.Reduce(lines, func(acc decimal.Decimal, l Line, _ int) decimal.Decimal {
		return acc.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}, decimal.Zero).Round(centsPlaces)

	return totalsFor(subtotal)
}

func totalsFor(subtotal decimal.Decimal) Totals {
	shipping := FlatShippingCost
	if subtotal.GreaterThanOrEqual(FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	tax := subtotal.Mul(TaxRate).Round(centsPlaces)

	return Totals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Total:        subtotal.Add(shipping).Add(tax),
	}
}
