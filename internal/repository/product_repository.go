package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/google/uuid"
)

const productColumns = `id, name, slug, image, price, stock, rating, num_reviews`

func (q *queries) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return scanProduct(q.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
}

// LockProduct reads the product under a row lock held until commit.
// Rating refreshes take it first so the review aggregates they compute see
// every review committed before them.
func (t *txRepository) LockProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return scanProduct(t.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Slug,
		&p.Image,
		&p.Price,
		&p.Stock,
		&p.Rating,
		&p.NumReviews,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query product by id: %w", err)
	}
	return &p, nil
}

// DecrementStock has no floor: oversell is refused when items enter a cart.
func (t *txRepository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	res, err := t.db.ExecContext(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1`, productID, qty)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	return expectOneRow(res, ErrProductNotFound)
}

func (t *txRepository) RefreshProductRating(ctx context.Context, productID uuid.UUID) error {
	query := `UPDATE products
	          SET rating = COALESCE((SELECT AVG(rating) FROM reviews WHERE product_id = $1), 0),
	              num_reviews = (SELECT COUNT(*) FROM reviews WHERE product_id = $1)
	          WHERE id = $1`

	res, err := t.db.ExecContext(ctx, query, productID)
	if err != nil {
		return fmt.Errorf("refresh product rating: %w", err)
	}
	return expectOneRow(res, ErrProductNotFound)
}

// CreateProduct seeds the catalog table, which this service only reads.
func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (id, name, slug, image, price, stock) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(ctx, query, p.ID, p.Name, p.Slug, p.Image, p.Price, p.Stock)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}
