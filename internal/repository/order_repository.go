package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/nikolayk812/footy/internal/port"
	"github.com/samber/lo"
	"golang.org/x/text/currency"
)

var (
	ErrNotFound = fmt.Errorf("order %w", domain.ErrNotFound)
)

const (
	orderColumns = `id, order_number, idempotency_key, user_id, session_id, status, currency,
		subtotal, shipping_cost, tax, total, shipping_address, notes, created_at, updated_at`

	orderItemColumns = `id, order_id, product_id, variant_id, product_name, product_image, size,
		quantity, unit_price, created_at`

	insertOrderSQL = `INSERT INTO orders (order_number, idempotency_key, user_id, session_id, status, currency,
		subtotal, shipping_cost, tax, total, shipping_address, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at, updated_at`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, line_no, product_id, variant_id, product_name,
		product_image, size, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
)

type orderRepository struct {
	db DBTX
}

func NewOrder(pool *pgxpool.Pool) port.OrderRepository {
	return &orderRepository{db: pool}
}

func NewOrderWithTx(tx pgx.Tx) port.OrderRepository {
	return &orderRepository{db: tx}
}

func (r *orderRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	return r.getOrderBy(ctx, "id = $1", orderID)
}

func (r *orderRepository) GetOrderByNumber(ctx context.Context, number string) (domain.Order, error) {
	return r.getOrderBy(ctx, "order_number = $1", number)
}

func (r *orderRepository) GetOrderByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (domain.Order, error) {
	return r.getOrderBy(ctx, "user_id = $1 AND idempotency_key = $2", userID, key)
}

func (r *orderRepository) getOrderBy(ctx context.Context, where string, args ...any) (domain.Order, error) {
	var o domain.Order

	order, err := withTx(ctx, r.db, readOnly, func(tx pgx.Tx) (domain.Order, error) {
		row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE `+where, args...)

		dbOrder, err := scanOrder(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return o, fmt.Errorf("scanOrder: %w", ErrNotFound)
			}
			return o, fmt.Errorf("scanOrder: %w", err)
		}

		items, err := getOrderItems(ctx, tx, []uuid.UUID{dbOrder.ID})
		if err != nil {
			return o, fmt.Errorf("getOrderItems: %w", err)
		}
		dbOrder.Items = items[dbOrder.ID]

		return dbOrder, nil
	})
	if err != nil {
		return o, fmt.Errorf("withTx: %w", err)
	}

	return order, nil
}

// SearchOrders returns one page of orders, newest first, and the total count matching the filter.
func (r *orderRepository) SearchOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, int, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, fmt.Errorf("filter.Validate: %w", err)
	}

	where, args := mapOrderFilterToSQL(filter)

	type page struct {
		orders []domain.Order
		total  int
	}

	result, err := withTx(ctx, r.db, readOnly, func(tx pgx.Tx) (page, error) {
		var p page

		if err := tx.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&p.total); err != nil {
			return p, fmt.Errorf("count orders: %w", err)
		}

		pageArgs := append(args, filter.PageSize, filter.Offset())
		query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
			orderColumns, where, len(args)+1, len(args)+2)

		rows, err := tx.Query(ctx, query, pageArgs...)
		if err != nil {
			return p, fmt.Errorf("tx.Query: %w", err)
		}

		orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Order, error) {
			return scanOrder(row)
		})
		if err != nil {
			return p, fmt.Errorf("pgx.CollectRows: %w", err)
		}

		items, err := getOrderItems(ctx, tx, lo.Map(orders, func(o domain.Order, _ int) uuid.UUID {
			return o.ID
		}))
		if err != nil {
			return p, fmt.Errorf("getOrderItems: %w", err)
		}

		for i := range orders {
			orders[i].Items = items[orders[i].ID]
		}

		p.orders = orders
		return p, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("withTx: %w", err)
	}

	return result.orders, result.total, nil
}

func (r *orderRepository) OrderNumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool

	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE order_number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("db.QueryRow: %w", err)
	}

	return exists, nil
}

// InsertOrder stores the order and its items atomically. Status is always pending.
// A unique violation is returned wrapped, see IsUniqueViolation.
func (r *orderRepository) InsertOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	if len(order.Items) == 0 {
		return domain.Order{}, errors.New("no items in order")
	}

	if order.Number == "" || order.IdempotencyKey == "" {
		return domain.Order{}, errors.New("order number and idempotency key are required")
	}

	inserted, err := withTx(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) (domain.Order, error) {
		o := order
		o.Status = domain.OrderStatusPending

		err := tx.QueryRow(ctx, insertOrderSQL,
			o.Number,
			o.IdempotencyKey,
			o.UserID,
			o.SessionID,
			string(o.Status),
			o.Currency.String(),
			o.Subtotal,
			o.ShippingCost,
			o.Tax,
			o.Total,
			o.ShippingAddress,
			o.Notes,
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return o, fmt.Errorf("insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for i, item := range o.Items {
			batch.Queue(insertOrderItemSQL,
				o.ID,
				i,
				item.ProductID,
				item.VariantID,
				item.ProductName,
				item.ProductImage,
				item.Size,
				item.Quantity,
				item.UnitPrice,
			)
		}

		results := tx.SendBatch(ctx, batch)

		items := make([]domain.OrderItem, len(o.Items))
		for i, item := range o.Items {
			if err := results.QueryRow().Scan(&item.ID, &item.CreatedAt); err != nil {
				_ = results.Close()
				return o, fmt.Errorf("insert order item: %w", err)
			}
			items[i] = item
		}

		if err := results.Close(); err != nil {
			return o, fmt.Errorf("results.Close: %w", err)
		}

		o.Items = items
		return o, nil
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("withTx: %w", err)
	}

	return inserted, nil
}

// UpdateOrderStatus writes only if the stored status still equals from.
func (r *orderRepository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus) error {
	if orderID == uuid.Nil {
		return errors.New("orderID is empty")
	}

	if to == "" {
		return errors.New("status is empty")
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE orders SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
		orderID, string(from), string(to))
	if err != nil {
		return fmt.Errorf("db.Exec: %w", err)
	}

	if cmdTag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("db.QueryRow: %w", err)
	}

	if !exists {
		return fmt.Errorf("UpdateOrderStatus: %w", ErrNotFound)
	}

	return fmt.Errorf("order[%s] is no longer %s: %w", orderID, from, domain.ErrConcurrentModification)
}

func getOrderItems(ctx context.Context, db DBTX, orderIDs []uuid.UUID) (map[uuid.UUID][]domain.OrderItem, error) {
	result := make(map[uuid.UUID][]domain.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return result, nil
	}

	rows, err := db.Query(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = ANY($1) ORDER BY order_id, line_no`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("db.Query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item    domain.OrderItem
			orderID uuid.UUID
		)

		if err := rows.Scan(&item.ID, &orderID, &item.ProductID, &item.VariantID, &item.ProductName,
			&item.ProductImage, &item.Size, &item.Quantity, &item.UnitPrice, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("rows.Scan: %w", err)
		}

		result[orderID] = append(result[orderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return result, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o            domain.Order
		status       string
		currencyCode string
	)

	err := row.Scan(&o.ID, &o.Number, &o.IdempotencyKey, &o.UserID, &o.SessionID, &status, &currencyCode,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Total, &o.ShippingAddress, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}

	o.Status, err = domain.ToOrderStatus(status)
	if err != nil {
		return o, fmt.Errorf("domain.ToOrderStatus[%s]: %w", status, err)
	}

	o.Currency, err = currency.ParseISO(strings.TrimSpace(currencyCode))
	if err != nil {
		return o, fmt.Errorf("currency[%s] is not valid: %w", currencyCode, err)
	}

	return o, nil
}

func mapOrderFilterToSQL(filter domain.OrderFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}

	if len(filter.Statuses) > 0 {
		add("status = ANY($%d)", lo.Map(filter.Statuses, func(s domain.OrderStatus, _ int) string {
			return string(s)
		}))
	}

	if filter.NumberSearch != "" {
		add("order_number ILIKE $%d", "%"+escapeLike(filter.NumberSearch)+"%")
	}

	if filter.CreatedAt != nil {
		if filter.CreatedAt.After != nil {
			add("created_at >= $%d", *filter.CreatedAt.After)
		}
		if filter.CreatedAt.Before != nil {
			add("created_at < $%d", *filter.CreatedAt.Before)
		}
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
