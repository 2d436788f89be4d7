package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
)

const productColumns = `id, name, description, price, stock, category, image, created_at, updated_at`

type ProductStore struct {
	db database.Querier
}

func NewProductStore(db database.Querier) *ProductStore {
	return &ProductStore{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner, product *models.Product) error {
	return row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Stock,
		&product.Category,
		&product.Image,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
}

func (s *ProductStore) ListProducts(ctx context.Context) ([]models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

func (s *ProductStore) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func (s *ProductStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product := &models.Product{}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE id = $1`

	err := scanProduct(s.db.QueryRowContext(ctx, query, id), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func (s *ProductStore) CreateProduct(ctx context.Context, in models.ProductInput) (int64, error) {
	var id int64

	query := `
		INSERT INTO products (name, description, price, stock, category, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id`

	err := s.db.QueryRowContext(ctx, query,
		in.Name, in.Description, in.Price, in.Stock, in.Category, in.Image,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create product: %w", err)
	}

	return id, nil
}

// UpdateProduct replaces every mutable column in one statement.
func (s *ProductStore) UpdateProduct(ctx context.Context, id int64, in models.ProductInput) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE products
		 SET name = $1, description = $2, price = $3, stock = $4,
		     category = $5, image = $6, updated_at = NOW()
		 WHERE id = $7`,
		in.Name, in.Description, in.Price, in.Stock, in.Category, in.Image, id)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}

func (s *ProductStore) DeleteProduct(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	return nil
}
