package cart

import (
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/shopspring/decimal"
)

// View is a cart resolved against the catalog. Lines of deleted products are left out.
type View struct {
	OwnerID   string
	Lines     []LineView
	Total     decimal.Decimal
	ItemCount int
}

type LineView struct {
	domain.CartLine

	ProductName  string
	Image        string
	Size         string
	CurrentPrice decimal.Decimal
	InStock      int
	Subtotal     decimal.Decimal
}

// PriceChanged reports whether the captured price differs from the catalog price.
func (l LineView) PriceChanged() bool {
	return !l.UnitPrice.Equal(l.CurrentPrice)
}
