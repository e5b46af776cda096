package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/nikolayk812/footy/internal/port"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const maxMergeAttempts = 3

var (
	errNothingToMerge = errors.New("nothing to merge")
	errMergeStale     = errors.New("anonymous cart changed since stock check")
)

type Service struct {
	store   port.CartStore
	catalog port.CatalogReader
	log     logrus.FieldLogger
}

func NewService(store port.CartStore, catalog port.CatalogReader, log logrus.FieldLogger) *Service {
	return &Service{
		store:   store,
		catalog: catalog,
		log:     log,
	}
}

// GetCart returns an empty view when the owner has no cart.
func (s *Service) GetCart(ctx context.Context, ownerID string) (View, error) {
	c, _, err := s.store.Get(ctx, ownerID)
	if err != nil {
		return View{}, fmt.Errorf("store.Get: %w", err)
	}

	return s.view(ctx, c)
}

// AddItem captures the current catalog price on a new line or adds quantity to the existing one.
func (s *Service) AddItem(ctx context.Context, ownerID string, productID, variantID uuid.UUID, quantity int) (View, error) {
	if quantity < 1 {
		return View{}, domain.ErrInvalidQuantity
	}

	product, variant, err := s.purchasable(ctx, productID, variantID)
	if err != nil {
		return View{}, err
	}

	c, err := s.store.Update(ctx, ownerID, func(c domain.Cart, _ bool) (domain.Cart, error) {
		requested := c.Quantity(variantID) + quantity
		if requested > variant.Stock {
			return c, &domain.InsufficientStockError{
				ProductName: product.Name,
				Requested:   requested,
				Available:   variant.Stock,
			}
		}

		return c.AddLine(domain.CartLine{
			ProductID: productID,
			VariantID: variantID,
			Quantity:  quantity,
			UnitPrice: product.Price,
		}), nil
	})
	if err != nil {
		return View{}, fmt.Errorf("store.Update: %w", err)
	}

	return s.view(ctx, c)
}

// UpdateItem sets the line quantity, zero removes the line.
func (s *Service) UpdateItem(ctx context.Context, ownerID string, variantID uuid.UUID, quantity int) (View, error) {
	if quantity < 0 {
		return View{}, domain.ErrInvalidQuantity
	}

	if quantity == 0 {
		return s.RemoveItem(ctx, ownerID, variantID)
	}

	current, exists, err := s.store.Get(ctx, ownerID)
	if err != nil {
		return View{}, fmt.Errorf("store.Get: %w", err)
	}
	if !exists {
		return View{}, domain.ErrCartNotFound
	}

	line, ok := current.Line(variantID)
	if !ok {
		return View{}, domain.ErrCartItemNotFound
	}

	product, variant, err := s.purchasable(ctx, line.ProductID, variantID)
	if err != nil {
		return View{}, err
	}

	if quantity > variant.Stock {
		return View{}, &domain.InsufficientStockError{
			ProductName: product.Name,
			Requested:   quantity,
			Available:   variant.Stock,
		}
	}

	c, err := s.store.Update(ctx, ownerID, func(c domain.Cart, exists bool) (domain.Cart, error) {
		if !exists {
			return c, domain.ErrCartNotFound
		}

		next, ok := c.SetQuantity(variantID, quantity)
		if !ok {
			return c, domain.ErrCartItemNotFound
		}

		return next, nil
	})
	if err != nil {
		return View{}, fmt.Errorf("store.Update: %w", err)
	}

	return s.view(ctx, c)
}

// RemoveItem is a no-op for a missing line but fails when the cart does not exist.
func (s *Service) RemoveItem(ctx context.Context, ownerID string, variantID uuid.UUID) (View, error) {
	c, err := s.store.Update(ctx, ownerID, func(c domain.Cart, exists bool) (domain.Cart, error) {
		if !exists {
			return c, domain.ErrCartNotFound
		}
		return c.RemoveLine(variantID), nil
	})
	if err != nil {
		return View{}, fmt.Errorf("store.Update: %w", err)
	}

	return s.view(ctx, c)
}

func (s *Service) ClearCart(ctx context.Context, ownerID string) error {
	if err := s.store.Delete(ctx, ownerID); err != nil {
		return fmt.Errorf("store.Delete: %w", err)
	}
	return nil
}

// MergeCarts moves the anonymous cart under the user key, adding quantities per variant.
// Lines already in the user cart keep their captured price. A merged line is capped at the
// available stock, lines of vanished or sold out variants are dropped.
func (s *Service) MergeCarts(ctx context.Context, anonymousID, userID string) (View, error) {
	if anonymousID == "" || anonymousID == userID {
		return s.GetCart(ctx, userID)
	}

	for range maxMergeAttempts {
		src, _, err := s.store.Get(ctx, anonymousID)
		if err != nil {
			return View{}, fmt.Errorf("store.Get: %w", err)
		}
		if src.IsEmpty() {
			return s.GetCart(ctx, userID)
		}

		available, err := s.availableStock(ctx, src)
		if err != nil {
			return View{}, err
		}

		var adjusted int
		c, err := s.store.Transfer(ctx, anonymousID, userID, func(src domain.Cart, srcExists bool, dst domain.Cart, _ bool) (domain.Cart, error) {
			if !srcExists || src.IsEmpty() {
				return dst, errNothingToMerge
			}

			adjusted = 0
			for _, l := range src.Lines {
				stock, checked := available[l.VariantID]
				if !checked {
					return dst, errMergeStale
				}

				room := stock - dst.Quantity(l.VariantID)
				if room < l.Quantity {
					adjusted++
				}
				if room <= 0 {
					continue
				}

				l.Quantity = min(l.Quantity, room)
				dst = dst.AddLine(l)
			}

			return dst, nil
		})
		if err != nil {
			switch {
			case errors.Is(err, errMergeStale):
				continue
			case errors.Is(err, errNothingToMerge):
				return s.GetCart(ctx, userID)
			}
			return View{}, fmt.Errorf("store.Transfer: %w", err)
		}

		s.log.WithFields(logrus.Fields{
			"from":     anonymousID,
			"to":       userID,
			"items":    c.ItemCount(),
			"adjusted": adjusted,
		}).Info("carts merged")

		return s.view(ctx, c)
	}

	return View{}, fmt.Errorf("merge %s: %w", anonymousID, domain.ErrConcurrentModification)
}

// availableStock maps every variant of the cart to its stock, zero when it can no longer be bought.
func (s *Service) availableStock(ctx context.Context, c domain.Cart) (map[uuid.UUID]int, error) {
	variantIDs := lo.Map(c.Lines, func(l domain.CartLine, _ int) uuid.UUID {
		return l.VariantID
	})
	productIDs := lo.Uniq(lo.Map(c.Lines, func(l domain.CartLine, _ int) uuid.UUID {
		return l.ProductID
	}))

	variants, err := s.catalog.GetVariants(ctx, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("catalog.GetVariants: %w", err)
	}

	products, err := s.catalog.GetProducts(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("catalog.GetProducts: %w", err)
	}

	available := make(map[uuid.UUID]int, len(c.Lines))
	for _, l := range c.Lines {
		v, ok := variants[l.VariantID]
		p, found := products[l.ProductID]
		if !ok || !found || v.ProductID != l.ProductID || !p.Purchasable() {
			available[l.VariantID] = 0
			continue
		}
		available[l.VariantID] = v.Stock
	}

	return available, nil
}

// RefreshPrices overwrites captured prices with live ones and drops lines whose product is gone.
func (s *Service) RefreshPrices(ctx context.Context, ownerID string) (View, error) {
	current, exists, err := s.store.Get(ctx, ownerID)
	if err != nil {
		return View{}, fmt.Errorf("store.Get: %w", err)
	}
	if !exists {
		return s.view(ctx, current)
	}

	productIDs := lo.Uniq(lo.Map(current.Lines, func(l domain.CartLine, _ int) uuid.UUID {
		return l.ProductID
	}))

	products, err := s.catalog.GetProducts(ctx, productIDs)
	if err != nil {
		return View{}, fmt.Errorf("catalog.GetProducts: %w", err)
	}

	checked := lo.SliceToMap(productIDs, func(id uuid.UUID) (uuid.UUID, struct{}) {
		return id, struct{}{}
	})

	c, err := s.store.Update(ctx, ownerID, func(c domain.Cart, _ bool) (domain.Cart, error) {
		lines := make([]domain.CartLine, 0, len(c.Lines))

		for _, l := range c.Lines {
			p, found := products[l.ProductID]
			if _, wasChecked := checked[l.ProductID]; wasChecked && (!found || p.DeletedAt != nil) {
				continue
			}
			if found {
				l.UnitPrice = p.Price
			}
			lines = append(lines, l)
		}

		c.Lines = lines
		return c, nil
	})
	if err != nil {
		return View{}, fmt.Errorf("store.Update: %w", err)
	}

	return s.view(ctx, c)
}

func (s *Service) purchasable(ctx context.Context, productID, variantID uuid.UUID) (domain.Product, domain.Variant, error) {
	variant, err := s.catalog.GetVariant(ctx, variantID)
	if err != nil {
		return domain.Product{}, domain.Variant{}, fmt.Errorf("catalog.GetVariant: %w", err)
	}

	if variant.ProductID != productID {
		return domain.Product{}, domain.Variant{}, fmt.Errorf("variant[%s] of product[%s]: %w", variantID, productID, domain.ErrNotFound)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, domain.Variant{}, fmt.Errorf("catalog.GetProduct: %w", err)
	}

	if !product.Purchasable() {
		return domain.Product{}, domain.Variant{}, fmt.Errorf("product[%s]: %w", productID, domain.ErrNotFound)
	}

	return product, variant, nil
}

func (s *Service) view(ctx context.Context, c domain.Cart) (View, error) {
	v := View{OwnerID: c.OwnerID, Total: decimal.Zero}
	if c.IsEmpty() {
		return v, nil
	}

	productIDs := lo.Uniq(lo.Map(c.Lines, func(l domain.CartLine, _ int) uuid.UUID {
		return l.ProductID
	}))
	variantIDs := lo.Map(c.Lines, func(l domain.CartLine, _ int) uuid.UUID {
		return l.VariantID
	})

	products, err := s.catalog.GetProducts(ctx, productIDs)
	if err != nil {
		return View{}, fmt.Errorf("catalog.GetProducts: %w", err)
	}

	variants, err := s.catalog.GetVariants(ctx, variantIDs)
	if err != nil {
		return View{}, fmt.Errorf("catalog.GetVariants: %w", err)
	}

	for _, l := range c.Lines {
		p, ok := products[l.ProductID]
		if !ok || p.DeletedAt != nil {
			continue
		}

		variant, ok := variants[l.VariantID]
		if !ok {
			continue
		}

		lv := LineView{
			CartLine:     l,
			ProductName:  p.Name,
			Image:        p.Image(),
			Size:         variant.Size,
			CurrentPrice: p.Price,
			InStock:      variant.Stock,
			Subtotal:     l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))),
		}

		v.Lines = append(v.Lines, lv)
		v.Total = v.Total.Add(lv.Subtotal)
		v.ItemCount += l.Quantity
	}

	return v, nil
}
