package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/nikolayk812/footy/internal/port"
	"github.com/samber/lo"
)

const (
	lockVariantSQL = `SELECT v.id, v.product_id, v.size, v.stock, v.version, v.updated_at, p.name
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
		FOR UPDATE OF v`

	reserveSQL = `UPDATE product_variants
		SET stock = stock - $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND stock >= $2
		RETURNING stock, version, updated_at`

	setStockSQL = `UPDATE product_variants
		SET stock = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3
		RETURNING ` + variantColumns
)

type inventoryRepository struct {
	db DBTX
}

func NewInventory(pool *pgxpool.Pool) port.InventoryLedger {
	return &inventoryRepository{db: pool}
}

func NewInventoryWithTx(tx pgx.Tx) port.InventoryLedger {
	return &inventoryRepository{db: tx}
}

// WithLockedRows sorts and de-duplicates the ids itself so every caller locks in the same order.
// When the repository was built from a pool the locks are held in a transaction of its own.
func (r *inventoryRepository) WithLockedRows(ctx context.Context, variantIDs []uuid.UUID, fn func(rows port.LockedVariants) error) error {
	ids := SortedIDs(variantIDs)

	_, err := withTx(ctx, r.db, pgx.TxOptions{}, func(tx pgx.Tx) (struct{}, error) {
		locked := &lockedVariants{
			tx:    tx,
			rows:  make(map[uuid.UUID]domain.Variant, len(ids)),
			names: make(map[uuid.UUID]string, len(ids)),
		}

		for _, id := range ids {
			var (
				v    domain.Variant
				name string
			)

			err := tx.QueryRow(ctx, lockVariantSQL, id).
				Scan(&v.ID, &v.ProductID, &v.Size, &v.Stock, &v.Version, &v.UpdatedAt, &name)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return struct{}{}, fmt.Errorf("variant[%s]: %w", id, domain.ErrNotFound)
				}
				return struct{}{}, fmt.Errorf("lock variant[%s]: %w", id, err)
			}

			locked.rows[id] = v
			locked.names[id] = name
		}

		return struct{}{}, fn(locked)
	})

	return err
}

func (r *inventoryRepository) SetStock(ctx context.Context, variantID uuid.UUID, stock int, expectedVersion int64) (domain.Variant, error) {
	if stock < 0 {
		return domain.Variant{}, domain.ErrInvalidQuantity
	}

	v, err := scanVariant(r.db.QueryRow(ctx, setStockSQL, variantID, stock, expectedVersion))
	if err == nil {
		return v, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return v, fmt.Errorf("scanVariant: %w", err)
	}

	// no row updated: either missing or version moved on
	if _, err := (&catalogRepository{db: r.db}).GetVariant(ctx, variantID); err != nil {
		return domain.Variant{}, err
	}

	return domain.Variant{}, fmt.Errorf("variant[%s] version %d: %w", variantID, expectedVersion, domain.ErrConcurrentModification)
}

type lockedVariants struct {
	tx    pgx.Tx
	rows  map[uuid.UUID]domain.Variant
	names map[uuid.UUID]string
}

func (l *lockedVariants) Get(variantID uuid.UUID) (domain.Variant, bool) {
	v, ok := l.rows[variantID]
	return v, ok
}

// Reserve decrements stock and bumps version of a row locked by WithLockedRows.
func (l *lockedVariants) Reserve(ctx context.Context, variantID uuid.UUID, quantity int) error {
	v, ok := l.rows[variantID]
	if !ok {
		return fmt.Errorf("variant[%s] is not locked", variantID)
	}

	if quantity < 1 {
		return domain.ErrInvalidQuantity
	}

	insufficient := &domain.InsufficientStockError{
		ProductName: l.names[variantID],
		Requested:   quantity,
		Available:   v.Stock,
	}

	if v.Stock < quantity {
		return insufficient
	}

	err := l.tx.QueryRow(ctx, reserveSQL, variantID, quantity).Scan(&v.Stock, &v.Version, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return insufficient
		}
		return fmt.Errorf("reserve variant[%s]: %w", variantID, err)
	}

	l.rows[variantID] = v
	return nil
}

// SortedIDs returns distinct ids in ascending byte order, the same order postgres sorts uuid.
func SortedIDs(ids []uuid.UUID) []uuid.UUID {
	sorted := lo.Uniq(ids)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return sorted
}
