// Package testhelper starts throwaway infrastructure for integration tests.
package testhelper

import (
	"context"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/footy/internal/domain"
	"github.com/nikolayk812/footy/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const postgresImage = "postgres:16-alpine"

// StartPostgres runs a postgres container with the schema migrated.
func StartPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := postgres.Run(ctx, postgresImage,
		postgres.WithDatabase("footy"),
		postgres.WithUsername("footy"),
		postgres.WithPassword("footy"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container, "", fmt.Errorf("container.ConnectionString: %w", err)
	}

	if err := repository.Migrate(connStr); err != nil {
		return container, "", fmt.Errorf("repository.Migrate: %w", err)
	}

	return container, connStr, nil
}

// InsertProduct stores an active product with one variant per stock entry.
func InsertProduct(ctx context.Context, pool *pgxpool.Pool, price string, stocks ...int) (domain.Product, []domain.Variant, error) {
	p := domain.Product{
		Name:   gofakeit.ProductName(),
		Images: []string{gofakeit.URL()},
		Price:  decimal.RequireFromString(price),
		Active: true,
	}

	err := pool.QueryRow(ctx,
		`INSERT INTO products (name, images, price) VALUES ($1, $2, $3) RETURNING id`,
		p.Name, p.Images, p.Price).Scan(&p.ID)
	if err != nil {
		return p, nil, fmt.Errorf("insert product: %w", err)
	}

	variants := make([]domain.Variant, 0, len(stocks))
	for i, stock := range stocks {
		v := domain.Variant{
			ProductID: p.ID,
			Size:      fmt.Sprintf("%d", 38+i),
			Stock:     stock,
		}

		err := pool.QueryRow(ctx,
			`INSERT INTO product_variants (product_id, size, stock) VALUES ($1, $2, $3) RETURNING id, version, updated_at`,
			v.ProductID, v.Size, v.Stock).Scan(&v.ID, &v.Version, &v.UpdatedAt)
		if err != nil {
			return p, nil, fmt.Errorf("insert variant: %w", err)
		}

		variants = append(variants, v)
	}

	return p, variants, nil
}

func SetProductPrice(ctx context.Context, pool *pgxpool.Pool, productID uuid.UUID, price string) error {
	_, err := pool.Exec(ctx, `UPDATE products SET price = $2, updated_at = now() WHERE id = $1`,
		productID, decimal.RequireFromString(price))
	return err
}

func DeleteProduct(ctx context.Context, pool *pgxpool.Pool, productID uuid.UUID) error {
	_, err := pool.Exec(ctx, `UPDATE products SET deleted_at = now() WHERE id = $1`, productID)
	return err
}

func Stock(ctx context.Context, pool *pgxpool.Pool, variantID uuid.UUID) (int, int64, error) {
	var (
		stock   int
		version int64
	)
	err := pool.QueryRow(ctx, `SELECT stock, version FROM product_variants WHERE id = $1`, variantID).Scan(&stock, &version)
	return stock, version, err
}

func CountOrders(ctx context.Context, pool *pgxpool.Pool) (orders int, items int, err error) {
	err = pool.QueryRow(ctx, `SELECT (SELECT count(*) FROM orders), (SELECT count(*) FROM order_items)`).Scan(&orders, &items)
	return orders, items, err
}

func TruncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `TRUNCATE order_items, orders, product_variants, products`)
	return err
}
