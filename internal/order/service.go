package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/nikolayk812/footy/internal/metrics"
	"github.com/nikolayk812/footy/internal/port"
	"github.com/nikolayk812/footy/internal/pricing"
	"github.com/nikolayk812/footy/internal/repository"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/currency"
)

const (
	DefaultTxTimeout = 10 * time.Second

	maxNumberRestarts = 3
)

var (
	errIdempotencyRace = errors.New("idempotency race")
	errNumberTaken     = errors.New("order number taken")
)

// Params is one checkout request.
type Params struct {
	UserID         uuid.UUID
	SessionID      string
	CartOwner      string // defaults to SessionID
	IdempotencyKey string

	ShippingAddress domain.ShippingAddress
	Notes           *string
}

func (p Params) cartOwner() string {
	if p.CartOwner != "" {
		return p.CartOwner
	}
	return p.SessionID
}

func (p Params) validate() error {
	if p.UserID == uuid.Nil {
		return errors.New("user id is required")
	}
	if p.IdempotencyKey == "" {
		return errors.New("idempotency key is required")
	}
	if p.cartOwner() == "" {
		return errors.New("session id is required")
	}
	return nil
}

type Option func(*Service)

func WithTxTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

func WithNumberGenerator(gen NumberGenerator) Option {
	return func(s *Service) {
		s.newNumber = gen
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

type Service struct {
	tx        port.Transactor
	orders    port.OrderRepository
	inventory port.InventoryLedger
	carts     port.CartStore
	log       logrus.FieldLogger

	metrics   *metrics.Metrics
	newNumber NumberGenerator
	txTimeout time.Duration
	currency  currency.Unit
}

func NewService(
	tx port.Transactor,
	orders port.OrderRepository,
	inventory port.InventoryLedger,
	carts port.CartStore,
	log logrus.FieldLogger,
	opts ...Option,
) *Service {
	s := &Service{
		tx:        tx,
		orders:    orders,
		inventory: inventory,
		carts:     carts,
		log:       log,
		newNumber: NewNumberGenerator(DefaultNumberPrefix, time.Now),
		txTimeout: DefaultTxTimeout,
		currency:  currency.USD,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateOrder turns the cart into an order, at most once per (user, idempotency key).
// A repeated call returns the order created by the first one.
func (s *Service) CreateOrder(ctx context.Context, p Params) (domain.Order, error) {
	if err := p.validate(); err != nil {
		return domain.Order{}, err
	}

	log := s.log.WithFields(logrus.Fields{
		"user_id":    p.UserID,
		"cart_owner": p.cartOwner(),
	})

	existing, found, err := s.findByIdempotencyKey(ctx, p)
	if err != nil {
		return domain.Order{}, err
	}
	if found {
		log.WithField("order_id", existing.ID).Info("idempotent replay")
		return existing, nil
	}

	cart, _, err := s.carts.Get(ctx, p.cartOwner())
	if err != nil {
		return domain.Order{}, fmt.Errorf("carts.Get: %w", err)
	}

	if cart.IsEmpty() {
		// a concurrent duplicate may have committed and cleared the cart since the first lookup
		if existing, found, err := s.findByIdempotencyKey(ctx, p); err == nil && found {
			return existing, nil
		}

		s.countFailure("cart_empty")
		return domain.Order{}, domain.ErrCartEmpty
	}

	var created domain.Order
	for attempt := 1; ; attempt++ {
		created, err = s.placeOrder(ctx, p, cart)
		if err == nil {
			break
		}

		if errors.Is(err, errIdempotencyRace) {
			return s.replayAfterRace(ctx, p, log)
		}

		if errors.Is(err, errNumberTaken) && attempt < maxNumberRestarts {
			log.WithField("attempt", attempt).Debug("order number taken, restarting")
			continue
		}

		return domain.Order{}, s.checkoutError(err)
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}

	log = log.WithFields(logrus.Fields{
		"order_id":     created.ID,
		"order_number": created.Number,
	})
	log.WithField("total", created.Total.StringFixed(2)).Info("order created")

	// the order is durable at this point, a stale cart is harmless
	if err := s.carts.Delete(context.WithoutCancel(ctx), p.cartOwner()); err != nil {
		if s.metrics != nil {
			s.metrics.CartClearFailures.Inc()
		}
		log.WithError(err).Warn("cart clear after checkout failed")
	}

	return created, nil
}

func (s *Service) findByIdempotencyKey(ctx context.Context, p Params) (domain.Order, bool, error) {
	o, err := s.orders.GetOrderByIdempotencyKey(ctx, p.UserID, p.IdempotencyKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return o, false, nil
		}
		return o, false, fmt.Errorf("orders.GetOrderByIdempotencyKey: %w", err)
	}

	return o, true, nil
}

func (s *Service) replayAfterRace(ctx context.Context, p Params, log logrus.FieldLogger) (domain.Order, error) {
	existing, found, err := s.findByIdempotencyKey(ctx, p)
	if err != nil {
		return domain.Order{}, err
	}
	if !found {
		s.countFailure("conflict")
		return domain.Order{}, fmt.Errorf("idempotency key %s: %w", p.IdempotencyKey, domain.ErrConcurrentModification)
	}

	log.WithField("order_id", existing.ID).Info("idempotent replay after race")
	return existing, nil
}

// placeOrder runs one serializable transaction: lock, validate, insert, reserve.
func (s *Service) placeOrder(ctx context.Context, p Params, cart domain.Cart) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	quantities := cart.QuantitiesByVariant()
	variantIDs := repository.SortedIDs(lo.Keys(quantities))
	productIDs := lo.Uniq(lo.Map(cart.Lines, func(l domain.CartLine, _ int) uuid.UUID {
		return l.ProductID
	}))

	var created domain.Order

	err := s.tx.InSerializableTx(ctx, func(uow port.UnitOfWork) error {
		// a retried transaction may follow a commit by the concurrent duplicate
		if _, err := uow.Orders().GetOrderByIdempotencyKey(ctx, p.UserID, p.IdempotencyKey); err == nil {
			return errIdempotencyRace
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("orders.GetOrderByIdempotencyKey: %w", err)
		}

		return uow.Inventory().WithLockedRows(ctx, variantIDs, func(rows port.LockedVariants) error {
			products, err := uow.Catalog().GetProducts(ctx, productIDs)
			if err != nil {
				return fmt.Errorf("catalog.GetProducts: %w", err)
			}

			items, err := orderItems(cart, quantities, products, rows)
			if err != nil {
				return err
			}

			number, err := uniqueNumber(ctx, s.newNumber, uow.Orders().OrderNumberExists)
			if err != nil {
				return fmt.Errorf("uniqueNumber: %w", err)
			}

			totals := pricing.Calculate(lo.Map(items, func(i domain.OrderItem, _ int) pricing.Line {
				return pricing.Line{UnitPrice: i.UnitPrice, Quantity: i.Quantity}
			}))

			inserted, err := uow.Orders().InsertOrder(ctx, domain.Order{
				Number:          number,
				IdempotencyKey:  p.IdempotencyKey,
				UserID:          p.UserID,
				SessionID:       p.SessionID,
				Status:          domain.OrderStatusPending,
				Currency:        s.currency,
				Subtotal:        totals.Subtotal,
				ShippingCost:    totals.ShippingCost,
				Tax:             totals.Tax,
				Total:           totals.Total,
				ShippingAddress: p.ShippingAddress,
				Notes:           p.Notes,
				Items:           items,
			})
			if err != nil {
				switch {
				case repository.IsUniqueViolation(err, repository.ConstraintOrderIdempotencyKey):
					return errIdempotencyRace
				case repository.IsUniqueViolation(err, repository.ConstraintOrderNumber):
					return errNumberTaken
				}
				return fmt.Errorf("orders.InsertOrder: %w", err)
			}

			for _, id := range variantIDs {
				if err := rows.Reserve(ctx, id, quantities[id]); err != nil {
					return err
				}
			}

			created = inserted
			return nil
		})
	})
	if err != nil {
		return domain.Order{}, err
	}

	return created, nil
}

// orderItems validates stock and captured prices against the locked rows,
// then snapshots product details in cart line order.
func orderItems(cart domain.Cart, quantities map[uuid.UUID]int, products map[uuid.UUID]domain.Product, rows port.LockedVariants) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(cart.Lines))

	for _, line := range cart.Lines {
		variant, ok := rows.Get(line.VariantID)
		if !ok || variant.ProductID != line.ProductID {
			return nil, fmt.Errorf("variant[%s]: %w", line.VariantID, domain.ErrNotFound)
		}

		product, ok := products[line.ProductID]
		if !ok || !product.Purchasable() {
			return nil, fmt.Errorf("product[%s]: %w", line.ProductID, domain.ErrNotFound)
		}

		if requested := quantities[line.VariantID]; requested > variant.Stock {
			return nil, &domain.InsufficientStockError{
				ProductName: product.Name,
				Requested:   requested,
				Available:   variant.Stock,
			}
		}

		if !line.UnitPrice.Equal(product.Price) {
			return nil, &domain.PriceChangedError{
				ProductName:  product.Name,
				CartPrice:    line.UnitPrice,
				CurrentPrice: product.Price,
			}
		}

		var image *string
		if img := product.Image(); img != "" {
			image = lo.ToPtr(img)
		}

		items = append(items, domain.OrderItem{
			ProductID:    lo.ToPtr(product.ID),
			VariantID:    lo.ToPtr(variant.ID),
			ProductName:  product.Name,
			ProductImage: image,
			Size:         variant.Size,
			Quantity:     line.Quantity,
			UnitPrice:    line.UnitPrice,
		})
	}

	return items, nil
}

// checkoutError counts the failure and turns transient storage errors into ErrConcurrentModification.
func (s *Service) checkoutError(err error) error {
	var (
		stockErr *domain.InsufficientStockError
		priceErr *domain.PriceChangedError
	)

	switch {
	case errors.As(err, &stockErr):
		s.countFailure("insufficient_stock")
		return err
	case errors.As(err, &priceErr):
		s.countFailure("price_changed")
		return err
	case errors.Is(err, domain.ErrNotFound):
		s.countFailure("not_found")
		return err
	case repository.IsSerializationFailure(err),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, errNumberTaken),
		errors.Is(err, errNumbersExhausted):
		s.countFailure("conflict")
		return fmt.Errorf("%w: %v", domain.ErrConcurrentModification, err)
	}

	s.countFailure("internal")
	return err
}

func (s *Service) countFailure(reason string) {
	if s.metrics != nil {
		s.metrics.OrderFailures.WithLabelValues(reason).Inc()
	}
}

// GetOrder hides orders of other users behind ErrNotFound.
func (s *Service) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (domain.Order, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders.GetOrder: %w", err)
	}

	if o.UserID != userID {
		return domain.Order{}, fmt.Errorf("order[%s]: %w", orderID, domain.ErrNotFound)
	}

	return o, nil
}

func (s *Service) GetOrderByNumber(ctx context.Context, number string, userID uuid.UUID) (domain.Order, error) {
	o, err := s.orders.GetOrderByNumber(ctx, number)
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders.GetOrderByNumber: %w", err)
	}

	if o.UserID != userID {
		return domain.Order{}, fmt.Errorf("order[%s]: %w", number, domain.ErrNotFound)
	}

	return o, nil
}

// ListUserOrders pages through the user's orders, newest first.
func (s *Service) ListUserOrders(ctx context.Context, userID uuid.UUID, page, pageSize int) (domain.OrderPage, error) {
	return s.ListOrders(ctx, domain.OrderFilter{
		UserID:   &userID,
		Page:     page,
		PageSize: pageSize,
	})
}

func (s *Service) ListOrders(ctx context.Context, filter domain.OrderFilter) (domain.OrderPage, error) {
	orders, total, err := s.orders.SearchOrders(ctx, filter)
	if err != nil {
		return domain.OrderPage{}, fmt.Errorf("orders.SearchOrders: %w", err)
	}

	return domain.NewOrderPage(orders, total, filter.Page, filter.PageSize), nil
}

// UpdateOrderStatus moves the order along the state machine.
// The write only applies if the status is still the one that was validated.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, target domain.OrderStatus) (domain.Order, error) {
	o, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders.GetOrder: %w", err)
	}

	if err := domain.ValidateTransition(o.Status, target); err != nil {
		return domain.Order{}, err
	}

	if err := s.orders.UpdateOrderStatus(ctx, orderID, o.Status, target); err != nil {
		return domain.Order{}, fmt.Errorf("orders.UpdateOrderStatus: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"from":     o.Status,
		"to":       target,
	}).Info("order status updated")

	updated, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("orders.GetOrder: %w", err)
	}

	return updated, nil
}

// SetStock is the admin stock edit, guarded by the variant version.
func (s *Service) SetStock(ctx context.Context, variantID uuid.UUID, stock int, expectedVersion int64) (domain.Variant, error) {
	v, err := s.inventory.SetStock(ctx, variantID, stock, expectedVersion)
	if err != nil {
		return domain.Variant{}, fmt.Errorf("inventory.SetStock: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"variant_id": variantID,
		"stock":      v.Stock,
		"version":    v.Version,
	}).Info("stock updated")

	return v, nil
}
