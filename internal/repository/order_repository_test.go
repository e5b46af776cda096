package repository_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/nikolayk812/footy/internal/port"
	"github.com/nikolayk812/footy/internal/pricing"
	"github.com/nikolayk812/footy/internal/repository"
	"github.com/nikolayk812/footy/internal/testhelper"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"go.uber.org/goleak"
	"golang.org/x/text/currency"
)

type orderRepositorySuite struct {
	suite.Suite

	pool      *pgxpool.Pool
	repo      port.OrderRepository
	container testcontainers.Container
}

// entry point to run the tests in the suite
func TestOrderRepositorySuite(t *testing.T) {
	// Verifies no leaks after all tests in the suite run.
	defer goleak.VerifyNone(t)

	suite.Run(t, new(orderRepositorySuite))
}

// before all tests in the suite
func (suite *orderRepositorySuite) SetupSuite() {
	ctx := suite.T().Context()

	var (
		connStr string
		err     error
	)

	suite.container, connStr, err = testhelper.StartPostgres(ctx)
	suite.Require().NoError(err)

	suite.pool, err = pgxpool.New(ctx, connStr)
	suite.Require().NoError(err)

	suite.repo = repository.NewOrder(suite.pool)
}

// after all tests in the suite
func (suite *orderRepositorySuite) TearDownSuite() {
	ctx := suite.T().Context()

	if suite.pool != nil {
		suite.pool.Close()
	}
	if suite.container != nil {
		suite.NoError(suite.container.Terminate(ctx))
	}
}

func (suite *orderRepositorySuite) TestInsertOrder() {
	defer suite.deleteAll()

	tests := []struct {
		name      string
		orderFunc func() domain.Order
		wantError string
	}{
		{
			name:      "valid order with all fields: ok",
			orderFunc: randomOrder,
		},
		{
			name: "valid order, nil notes, orphaned items: ok",
			orderFunc: func() domain.Order {
				o := randomOrder()
				o.Notes = nil
				for i := range o.Items {
					o.Items[i].ProductID = nil
					o.Items[i].VariantID = nil
					o.Items[i].ProductImage = nil
				}
				return o
			},
		},
		{
			name: "invalid order, no items: fail",
			orderFunc: func() domain.Order {
				o := randomOrder()
				o.Items = nil
				return o
			},
			wantError: "no items in order",
		},
		{
			name: "invalid order, no number: fail",
			orderFunc: func() domain.Order {
				o := randomOrder()
				o.Number = ""
				return o
			},
			wantError: "order number and idempotency key are required",
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			ttOrder := tt.orderFunc()

			inserted, err := suite.repo.InsertOrder(ctx, ttOrder)
			if tt.wantError != "" {
				require.EqualError(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			require.NotEqual(t, uuid.Nil, inserted.ID)

			actual, err := suite.repo.GetOrder(ctx, inserted.ID)
			require.NoError(t, err)

			expected := ttOrder
			expected.Status = domain.OrderStatusPending

			assertOrder(t, expected, actual)
			assertOrder(t, inserted, actual)
		})
	}
}

func (suite *orderRepositorySuite) TestInsertOrder_UniqueConstraints() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	first, err := suite.repo.InsertOrder(ctx, randomOrder())
	require.NoError(t, err)

	tests := []struct {
		name           string
		orderFunc      func() domain.Order
		wantConstraint string
	}{
		{
			name: "same user and idempotency key: fail",
			orderFunc: func() domain.Order {
				o := randomOrder()
				o.UserID = first.UserID
				o.IdempotencyKey = first.IdempotencyKey
				return o
			},
			wantConstraint: repository.ConstraintOrderIdempotencyKey,
		},
		{
			name: "same order number: fail",
			orderFunc: func() domain.Order {
				o := randomOrder()
				o.Number = first.Number
				return o
			},
			wantConstraint: repository.ConstraintOrderNumber,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()

			_, err := suite.repo.InsertOrder(t.Context(), tt.orderFunc())
			require.Error(t, err)
			assert.True(t, repository.IsUniqueViolation(err, tt.wantConstraint), err.Error())
		})
	}

	suite.Run("same idempotency key, another user: ok", func() {
		t := suite.T()

		o := randomOrder()
		o.IdempotencyKey = first.IdempotencyKey

		_, err := suite.repo.InsertOrder(t.Context(), o)
		require.NoError(t, err)
	})
}

func (suite *orderRepositorySuite) TestGetOrderBy() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	inserted, err := suite.repo.InsertOrder(ctx, randomOrder())
	require.NoError(t, err)

	tests := []struct {
		name      string
		getFunc   func() (domain.Order, error)
		wantError string
	}{
		{
			name: "by id: ok",
			getFunc: func() (domain.Order, error) {
				return suite.repo.GetOrder(ctx, inserted.ID)
			},
		},
		{
			name: "by number: ok",
			getFunc: func() (domain.Order, error) {
				return suite.repo.GetOrderByNumber(ctx, inserted.Number)
			},
		},
		{
			name: "by idempotency key: ok",
			getFunc: func() (domain.Order, error) {
				return suite.repo.GetOrderByIdempotencyKey(ctx, inserted.UserID, inserted.IdempotencyKey)
			},
		},
		{
			name: "by id, missing: not found",
			getFunc: func() (domain.Order, error) {
				return suite.repo.GetOrder(ctx, uuid.New())
			},
			wantError: "withTx: scanOrder: order not found",
		},
		{
			name: "by idempotency key of another user: not found",
			getFunc: func() (domain.Order, error) {
				return suite.repo.GetOrderByIdempotencyKey(ctx, uuid.New(), inserted.IdempotencyKey)
			},
			wantError: "withTx: scanOrder: order not found",
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()

			actual, err := tt.getFunc()
			if tt.wantError != "" {
				require.EqualError(t, err, tt.wantError)
				require.ErrorIs(t, err, domain.ErrNotFound)
				return
			}
			require.NoError(t, err)

			assertOrder(t, inserted, actual)
		})
	}
}

func (suite *orderRepositorySuite) TestUpdateOrderStatus() {
	defer suite.deleteAll()

	tests := []struct {
		name         string
		from         domain.OrderStatus
		to           domain.OrderStatus
		targetIDFunc func(uuid.UUID) uuid.UUID
		wantStatus   domain.OrderStatus
		wantError    string
		wantIs       error
	}{
		{
			name:       "matching current status: ok",
			from:       domain.OrderStatusPending,
			to:         domain.OrderStatusConfirmed,
			wantStatus: domain.OrderStatusConfirmed,
		},
		{
			name:       "stale current status: concurrent modification",
			from:       domain.OrderStatusConfirmed,
			to:         domain.OrderStatusProcessing,
			wantStatus: domain.OrderStatusPending,
			wantIs:     domain.ErrConcurrentModification,
		},
		{
			name: "non-existing order: not found",
			from: domain.OrderStatusPending,
			to:   domain.OrderStatusConfirmed,
			targetIDFunc: func(uuid.UUID) uuid.UUID {
				return uuid.New()
			},
			wantError: "UpdateOrderStatus: order not found",
		},
		{
			name: "empty order ID: error",
			from: domain.OrderStatusPending,
			to:   domain.OrderStatusConfirmed,
			targetIDFunc: func(uuid.UUID) uuid.UUID {
				return uuid.Nil
			},
			wantError: "orderID is empty",
		},
		{
			name:      "empty status: error",
			from:      domain.OrderStatusPending,
			to:        "",
			wantError: "status is empty",
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			inserted, err := suite.repo.InsertOrder(ctx, randomOrder())
			require.NoError(t, err)

			targetID := inserted.ID
			if tt.targetIDFunc != nil {
				targetID = tt.targetIDFunc(inserted.ID)
			}

			err = suite.repo.UpdateOrderStatus(ctx, targetID, tt.from, tt.to)
			switch {
			case tt.wantError != "":
				require.EqualError(t, err, tt.wantError)
				return
			case tt.wantIs != nil:
				require.ErrorIs(t, err, tt.wantIs)
			default:
				require.NoError(t, err)
			}

			actual, err := suite.repo.GetOrder(ctx, inserted.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, actual.Status)
		})
	}
}

func (suite *orderRepositorySuite) TestSearchOrders() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	userID := uuid.New()

	var userOrders []domain.Order
	for range 5 {
		o := randomOrder()
		o.UserID = userID

		inserted, err := suite.repo.InsertOrder(ctx, o)
		require.NoError(t, err)
		userOrders = append(userOrders, inserted)

		// distinct created_at for a stable newest-first order
		time.Sleep(5 * time.Millisecond)
	}

	other, err := suite.repo.InsertOrder(ctx, randomOrder())
	require.NoError(t, err)

	require.NoError(t, suite.repo.UpdateOrderStatus(ctx, userOrders[0].ID, domain.OrderStatusPending, domain.OrderStatusCancelled))

	newestFirst := lo.Reverse(lo.Map(userOrders, func(o domain.Order, _ int) uuid.UUID { return o.ID }))

	tests := []struct {
		name      string
		filter    domain.OrderFilter
		wantIDs   []uuid.UUID
		wantTotal int
		wantError string
	}{
		{
			name:      "user orders, first page: ok",
			filter:    domain.OrderFilter{UserID: &userID, Page: 1, PageSize: 2},
			wantIDs:   newestFirst[:2],
			wantTotal: 5,
		},
		{
			name:      "user orders, last page: ok",
			filter:    domain.OrderFilter{UserID: &userID, Page: 3, PageSize: 2},
			wantIDs:   newestFirst[4:],
			wantTotal: 5,
		},
		{
			name:      "by status: ok",
			filter:    domain.OrderFilter{Statuses: []domain.OrderStatus{domain.OrderStatusCancelled}, Page: 1, PageSize: 10},
			wantIDs:   []uuid.UUID{userOrders[0].ID},
			wantTotal: 1,
		},
		{
			name:      "by number substring: ok",
			filter:    domain.OrderFilter{NumberSearch: other.Number[len(other.Number)-6:], Page: 1, PageSize: 10},
			wantIDs:   []uuid.UUID{other.ID},
			wantTotal: 1,
		},
		{
			name:      "wildcards in search are literal: empty",
			filter:    domain.OrderFilter{NumberSearch: "%", Page: 1, PageSize: 10},
			wantIDs:   []uuid.UUID{},
			wantTotal: 0,
		},
		{
			name:      "invalid page size: fail",
			filter:    domain.OrderFilter{Page: 1, PageSize: 0},
			wantError: "filter.Validate: page size must be between 1 and 100",
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()

			orders, total, err := suite.repo.SearchOrders(t.Context(), tt.filter)
			if tt.wantError != "" {
				require.EqualError(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantIDs, lo.Map(orders, func(o domain.Order, _ int) uuid.UUID { return o.ID }))
			for _, o := range orders {
				assert.NotEmpty(t, o.Items)
			}
		})
	}
}

func (suite *orderRepositorySuite) TestOrderNumberExists() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	inserted, err := suite.repo.InsertOrder(ctx, randomOrder())
	require.NoError(t, err)

	exists, err := suite.repo.OrderNumberExists(ctx, inserted.Number)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = suite.repo.OrderNumberExists(ctx, "FT-19700101-ZZZZZZ")
	require.NoError(t, err)
	assert.False(t, exists)
}

func (suite *orderRepositorySuite) deleteAll() {
	err := testhelper.TruncateAll(suite.T().Context(), suite.pool)
	suite.NoError(err)
}

func randomOrder() domain.Order {
	var (
		items []domain.OrderItem
		lines []pricing.Line
	)

	for range gofakeit.Number(1, 4) {
		item := randomOrderItem()
		items = append(items, item)
		lines = append(lines, pricing.Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}

	totals := pricing.Calculate(lines)

	return domain.Order{
		Number:         fmt.Sprintf("FT-%s-%s", time.Now().UTC().Format("20060102"), gofakeit.Password(false, true, true, false, false, 6)),
		IdempotencyKey: gofakeit.UUID(),
		UserID:         uuid.New(),
		SessionID:      gofakeit.UUID(),
		Currency:       currency.USD,
		Subtotal:       totals.Subtotal,
		ShippingCost:   totals.ShippingCost,
		Tax:            totals.Tax,
		Total:          totals.Total,
		ShippingAddress: domain.ShippingAddress{
			Name:       gofakeit.Name(),
			Line1:      gofakeit.Street(),
			Line2:      lo.ToPtr(gofakeit.StreetSuffix()),
			City:       gofakeit.City(),
			State:      gofakeit.State(),
			PostalCode: gofakeit.Zip(),
			Country:    gofakeit.Country(),
			Phone:      gofakeit.Phone(),
		},
		Notes: lo.ToPtr(gofakeit.Sentence(5)),
		Items: items,
	}
}

func randomOrderItem() domain.OrderItem {
	return domain.OrderItem{
		ProductName:  gofakeit.ProductName(),
		ProductImage: lo.ToPtr(gofakeit.URL()),
		Size:         gofakeit.RandomString([]string{"S", "M", "L", "42"}),
		Quantity:     gofakeit.Number(1, 3),
		UnitPrice:    decimal.NewFromFloat(gofakeit.Price(1, 100)).Round(2),
	}
}

func assertOrder(t *testing.T, expected, actual domain.Order) {
	t.Helper()

	currencyComparer := cmp.Comparer(func(x, y currency.Unit) bool {
		return x.String() == y.String()
	})

	decimalComparer := cmp.Comparer(func(x, y decimal.Decimal) bool {
		return x.Equal(y)
	})

	// Ignore generated fields and
	// Treat empty slices as equal to nil
	opts := cmp.Options{
		cmpopts.IgnoreFields(domain.OrderItem{}, "ID", "CreatedAt"),
		cmpopts.IgnoreFields(domain.Order{}, "ID", "CreatedAt", "UpdatedAt"),
		cmpopts.EquateEmpty(),
		currencyComparer,
		decimalComparer,
	}

	diff := cmp.Diff(expected, actual, opts)
	assert.Empty(t, diff)

	assert.False(t, actual.CreatedAt.IsZero())
	assert.False(t, actual.UpdatedAt.IsZero())
	assert.NotEqual(t, uuid.Nil, actual.ID)
	for _, item := range actual.Items {
		assert.NotEqual(t, uuid.Nil, item.ID)
	}
}
