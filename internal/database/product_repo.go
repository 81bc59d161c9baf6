package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smartstore/engine/internal/models"
)

type ProductRepo struct {
	db *DB
}

func NewProductRepo(db *DB) *ProductRepo {
	return &ProductRepo{db: db}
}

func (r *ProductRepo) Insert(ctx context.Context, product *models.Product) error {
	query := `INSERT INTO products (id, name, price, visual_id, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	active := 0
	if product.IsActive {
		active = 1
	}

	_, err := r.db.conn.ExecContext(ctx, query,
		product.ID, product.Name, product.Price, product.VisualID, active, product.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// GetByVisualID resolves a product oracle candidate to a catalog entry.
func (r *ProductRepo) GetByVisualID(ctx context.Context, visualID string) (*models.Product, error) {
	query := `SELECT id, name, price, visual_id, is_active, created_at
		FROM products WHERE visual_id = ? AND is_active = 1`

	var product models.Product
	var active int
	err := r.db.conn.QueryRowContext(ctx, query, visualID).
		Scan(&product.ID, &product.Name, &product.Price, &product.VisualID, &active, &product.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("product not found for visual id %s", visualID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	product.IsActive = active == 1
	return &product, nil
}

func (r *ProductRepo) ListActive(ctx context.Context) ([]models.Product, error) {
	query := `SELECT id, name, price, visual_id, is_active, created_at
		FROM products WHERE is_active = 1 ORDER BY name`

	rows, err := r.db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var product models.Product
		var active int
		if err := rows.Scan(&product.ID, &product.Name, &product.Price, &product.VisualID, &active, &product.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		product.IsActive = active == 1
		products = append(products, product)
	}
	return products, rows.Err()
}
