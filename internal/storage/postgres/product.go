package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/neostore/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, description, price, category, stock, image, old_price
		FROM products ORDER BY position, id`

	upsertProductSQL = `INSERT INTO products (id, position, name, description, price, category, stock, image, old_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			position = EXCLUDED.position,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			price = EXCLUDED.price,
			category = EXCLUDED.category,
			stock = EXCLUDED.stock,
			image = EXCLUDED.image,
			old_price = EXCLUDED.old_price`
)

var _ product.Source = (*ProductRepository)(nil)

// ProductRepository reads and writes the products table.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Fetch returns every product in catalog order.
func (r *ProductRepository) Fetch(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Upsert writes products in one batch, keeping their slice order as the
// catalog order.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	batch := &pgx.Batch{}
	for i, p := range products {
		batch.Queue(upsertProductSQL,
			p.ID, i, p.Name, p.Description, p.Price, p.Category, p.Stock, p.Image, p.OldPrice,
		)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upserting products: %w", err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
		&p.Stock, &p.Image, &p.OldPrice,
	)
	return p, err
}
