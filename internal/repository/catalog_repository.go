package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/nikolayk812/footy/internal/port"
)

const (
	productColumns = `id, name, images, price, is_active, deleted_at`
	variantColumns = `id, product_id, size, stock, version, updated_at`
)

type catalogRepository struct {
	db DBTX
}

func NewCatalog(pool *pgxpool.Pool) port.CatalogReader {
	return &catalogRepository{db: pool}
}

func NewCatalogWithTx(tx pgx.Tx) port.CatalogReader {
	return &catalogRepository{db: tx}
}

// GetProduct returns soft-deleted products too, callers decide via Purchasable.
func (r *catalogRepository) GetProduct(ctx context.Context, productID uuid.UUID) (domain.Product, error) {
	row := r.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return p, fmt.Errorf("product[%s]: %w", productID, domain.ErrNotFound)
		}
		return p, fmt.Errorf("scanProduct: %w", err)
	}

	return p, nil
}

// GetProducts omits unknown ids from the result.
func (r *catalogRepository) GetProducts(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]domain.Product, error) {
	result := make(map[uuid.UUID]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, productIDs)
	if err != nil {
		return nil, fmt.Errorf("db.Query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scanProduct: %w", err)
		}
		result[p.ID] = p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return result, nil
}

func (r *catalogRepository) GetVariant(ctx context.Context, variantID uuid.UUID) (domain.Variant, error) {
	row := r.db.QueryRow(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id = $1`, variantID)

	v, err := scanVariant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return v, fmt.Errorf("variant[%s]: %w", variantID, domain.ErrNotFound)
		}
		return v, fmt.Errorf("scanVariant: %w", err)
	}

	return v, nil
}

func (r *catalogRepository) GetVariants(ctx context.Context, variantIDs []uuid.UUID) (map[uuid.UUID]domain.Variant, error) {
	result := make(map[uuid.UUID]domain.Variant, len(variantIDs))
	if len(variantIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `SELECT `+variantColumns+` FROM product_variants WHERE id = ANY($1)`, variantIDs)
	if err != nil {
		return nil, fmt.Errorf("db.Query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanVariant: %w", err)
		}
		result[v.ID] = v
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return result, nil
}

func scanProduct(row pgx.Row) (domain.Product, error) {
	var p domain.Product

	err := row.Scan(&p.ID, &p.Name, &p.Images, &p.Price, &p.Active, &p.DeletedAt)
	return p, err
}

func scanVariant(row pgx.Row) (domain.Variant, error) {
	var v domain.Variant

	err := row.Scan(&v.ID, &v.ProductID, &v.Size, &v.Stock, &v.Version, &v.UpdatedAt)
	return v, err
}
