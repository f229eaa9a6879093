package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/google/uuid"
)

const orderColumns = `o.id, o.user_id, o.shipping_address, o.payment_method, o.payment_result,
	o.items_price, o.shipping_price, o.tax_price, o.total_price,
	o.is_paid, o.paid_at, o.is_delivered, o.delivered_at, o.created_at,
	COALESCE(u.name, ''), COALESCE(u.email, '')`

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var addressJSON, resultJSON []byte
	var paidAt, deliveredAt sql.NullTime
	var user domain.OrderUser
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&addressJSON,
		&o.PaymentMethod,
		&resultJSON,
		&o.ItemsPrice,
		&o.ShippingPrice,
		&o.TaxPrice,
		&o.TotalPrice,
		&o.IsPaid,
		&paidAt,
		&o.IsDelivered,
		&deliveredAt,
		&o.CreatedAt,
		&user.Name,
		&user.Email,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := json.Unmarshal(addressJSON, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}
	if resultJSON != nil {
		var pr domain.PaymentResult
		if err := json.Unmarshal(resultJSON, &pr); err != nil {
			return nil, fmt.Errorf("unmarshal payment result: %w", err)
		}
		o.PaymentResult = &pr
	}
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	o.User = &user
	return &o, nil
}

// marshalPaymentResult returns an untyped nil for a missing result so the
// driver writes SQL NULL rather than an empty jsonb value.
func marshalPaymentResult(result *domain.PaymentResult) (any, error) {
	if result == nil {
		return nil, nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal payment result: %w", err)
	}
	return b, nil
}

func (q *queries) loadItems(ctx context.Context, order *domain.Order) error {
	query := `SELECT order_id, product_id, name, slug, image, price, qty
	          FROM order_items WHERE order_id = $1 ORDER BY name, product_id`

	rows, err := q.db.QueryContext(ctx, query, order.ID)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	order.Items = []domain.OrderItem{}
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Name, &it.Slug, &it.Image, &it.Price, &it.Qty); err != nil {
			return fmt.Errorf("scan order item row: %w", err)
		}
		order.Items = append(order.Items, it)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}

func (q *queries) getOrder(ctx context.Context, id uuid.UUID, lock bool) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + `
	          FROM orders o LEFT JOIN users u ON u.id = o.user_id
	          WHERE o.id = $1`
	if lock {
		query += ` FOR UPDATE OF o`
	}

	order, err := scanOrder(q.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}
	if err := q.loadItems(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

func (q *queries) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return q.getOrder(ctx, id, false)
}

func (q *queries) listOrders(ctx context.Context, where string, arg any, limit, offset int) ([]*domain.Order, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM orders o LEFT JOIN users u ON u.id = o.user_id ` + where
	if err := q.db.QueryRowContext(ctx, countQuery, arg).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	query := `SELECT ` + orderColumns + `
	          FROM orders o LEFT JOIN users u ON u.id = o.user_id ` + where + `
	          ORDER BY o.created_at DESC
	          LIMIT $2 OFFSET $3`

	rows, err := q.db.QueryContext(ctx, query, arg, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}
	return orders, total, nil
}

func (q *queries) ListOrdersByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Order, int, error) {
	return q.listOrders(ctx, `WHERE o.user_id = $1`, userID, limit, offset)
}

// ListOrders filters by a case-insensitive substring of the customer name.
// An empty name matches every order.
func (q *queries) ListOrders(ctx context.Context, customerName string, limit, offset int) ([]*domain.Order, int, error) {
	return q.listOrders(ctx, `WHERE ($1 = '' OR u.name ILIKE '%' || $1 || '%')`, customerName, limit, offset)
}

func (t *txRepository) CreateOrder(ctx context.Context, order *domain.Order) error {
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	query := `INSERT INTO orders (id, user_id, shipping_address, payment_method, items_price, shipping_price, tax_price, total_price, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = t.db.ExecContext(ctx, query,
		order.ID,
		order.UserID,
		addressJSON,
		order.PaymentMethod,
		order.ItemsPrice,
		order.ShippingPrice,
		order.TaxPrice,
		order.TotalPrice,
		order.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert order: %w", err)
	}

	itemQuery := `INSERT INTO order_items (order_id, product_id, name, slug, image, price, qty)
	              VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, it := range order.Items {
		_, err := t.db.ExecContext(ctx, itemQuery, order.ID, it.ProductID, it.Name, it.Slug, it.Image, it.Price, it.Qty)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t *txRepository) LockOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return t.getOrder(ctx, id, true)
}

func (t *txRepository) SetPaymentResult(ctx context.Context, orderID uuid.UUID, result *domain.PaymentResult) error {
	resultJSON, err := marshalPaymentResult(result)
	if err != nil {
		return err
	}
	res, err := t.db.ExecContext(ctx,
		`UPDATE orders SET payment_result = $2 WHERE id = $1`, orderID, resultJSON)
	if err != nil {
		return fmt.Errorf("set payment result: %w", err)
	}
	return expectOneRow(res, ErrOrderNotFound)
}

// MarkOrderPaid only flips unpaid orders, so a second caller that slipped
// past the row lock still cannot pay twice.
func (t *txRepository) MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time, result *domain.PaymentResult) error {
	resultJSON, err := marshalPaymentResult(result)
	if err != nil {
		return err
	}
	res, err := t.db.ExecContext(ctx,
		`UPDATE orders SET is_paid = TRUE, paid_at = $2, payment_result = $3 WHERE id = $1 AND is_paid = FALSE`,
		orderID, paidAt, resultJSON)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	return expectOneRow(res, ErrOrderAlreadyPaid)
}

func (t *txRepository) MarkOrderDelivered(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) error {
	res, err := t.db.ExecContext(ctx,
		`UPDATE orders SET is_delivered = TRUE, delivered_at = $2 WHERE id = $1 AND is_paid = TRUE AND is_delivered = FALSE`,
		orderID, deliveredAt)
	if err != nil {
		return fmt.Errorf("mark order delivered: %w", err)
	}
	return expectOneRow(res, ErrOrderNotPaid)
}

func (r *Repository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return expectOneRow(res, ErrOrderNotFound)
}
