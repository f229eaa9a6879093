package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/google/uuid"
)

const reviewColumns = `r.id, r.user_id, r.product_id, r.title, r.description, r.rating, r.is_verified_purchase, r.created_at, COALESCE(u.name, '')`

func scanReview(row rowScanner) (*domain.Review, error) {
	var rv domain.Review
	err := row.Scan(
		&rv.ID,
		&rv.UserID,
		&rv.ProductID,
		&rv.Title,
		&rv.Description,
		&rv.Rating,
		&rv.IsVerifiedPurchase,
		&rv.CreatedAt,
		&rv.UserName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReviewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan review: %w", err)
	}
	return &rv, nil
}

func (q *queries) ListReviews(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error) {
	query := `SELECT ` + reviewColumns + `
	          FROM reviews r LEFT JOIN users u ON u.id = r.user_id
	          WHERE r.product_id = $1
	          ORDER BY r.created_at DESC`

	rows, err := q.db.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	reviews := []*domain.Review{}
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return reviews, nil
}

func (q *queries) GetReview(ctx context.Context, userID, productID uuid.UUID) (*domain.Review, error) {
	query := `SELECT ` + reviewColumns + `
	          FROM reviews r LEFT JOIN users u ON u.id = r.user_id
	          WHERE r.user_id = $1 AND r.product_id = $2`
	return scanReview(q.db.QueryRowContext(ctx, query, userID, productID))
}

// UpsertReview keeps one review per user and product. It reports whether a
// new row was inserted and fills the stored id and creation time.
func (t *txRepository) UpsertReview(ctx context.Context, review *domain.Review) (bool, error) {
	query := `INSERT INTO reviews (id, user_id, product_id, title, description, rating, is_verified_purchase, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	          ON CONFLICT (user_id, product_id)
	          DO UPDATE SET title = EXCLUDED.title, description = EXCLUDED.description, rating = EXCLUDED.rating
	          RETURNING id, created_at, (xmax = 0)`

	var inserted bool
	err := t.db.QueryRowContext(ctx, query,
		review.ID,
		review.UserID,
		review.ProductID,
		review.Title,
		review.Description,
		review.Rating,
		review.IsVerifiedPurchase,
	).Scan(&review.ID, &review.CreatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert review: %w", err)
	}
	return inserted, nil
}
