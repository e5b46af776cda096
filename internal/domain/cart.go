package domain

import (
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Cart is the snapshot kept in the cart store under its owner key.
// At most one line per variant.
type Cart struct {
	OwnerID string     `json:"ownerId"`
	Lines   []CartLine `json:"lines"`
}

type CartLine struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"productId"`
	VariantID uuid.UUID       `json:"variantId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c Cart) Line(variantID uuid.UUID) (CartLine, bool) {
	return lo.Find(c.Lines, func(l CartLine) bool {
		return l.VariantID == variantID
	})
}

func (c Cart) Quantity(variantID uuid.UUID) int {
	line, _ := c.Line(variantID)
	return line.Quantity
}

func (c Cart) ItemCount() int {
	return lo.SumBy(c.Lines, func(l CartLine) int {
		return l.Quantity
	})
}

// AddLine merges quantity into the existing line for the variant or appends a new one.
func (c Cart) AddLine(line CartLine) Cart {
	lines := make([]CartLine, 0, len(c.Lines)+1)
	merged := false

	for _, l := range c.Lines {
		if l.VariantID == line.VariantID {
			l.Quantity += line.Quantity
			merged = true
		}
		lines = append(lines, l)
	}

	if !merged {
		if line.ID == uuid.Nil {
			line.ID = uuid.New()
		}
		lines = append(lines, line)
	}

	c.Lines = lines
	return c
}

// SetQuantity replaces the quantity of an existing line, reporting false if there is none.
func (c Cart) SetQuantity(variantID uuid.UUID, quantity int) (Cart, bool) {
	if _, ok := c.Line(variantID); !ok {
		return c, false
	}

	c.Lines = lo.Map(c.Lines, func(l CartLine, _ int) CartLine {
		if l.VariantID == variantID {
			l.Quantity = quantity
		}
		return l
	})

	return c, true
}

func (c Cart) RemoveLine(variantID uuid.UUID) Cart {
	c.Lines = lo.Reject(c.Lines, func(l CartLine, _ int) bool {
		return l.VariantID == variantID
	})
	return c
}

// QuantitiesByVariant sums line quantities per variant.
func (c Cart) QuantitiesByVariant() map[uuid.UUID]int {
	result := make(map[uuid.UUID]int, len(c.Lines))
	for _, l := range c.Lines {
		result[l.VariantID] += l.Quantity
	}
	return result
}
