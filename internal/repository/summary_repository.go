package repository

import (
	"context"
	"fmt"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/shopspring/decimal"
)

// GetOrderSummary runs outside a transaction; the counts and totals may be
// read at slightly different moments.
func (r *Repository) GetOrderSummary(ctx context.Context, latest int) (*domain.OrderSummary, error) {
	summary := &domain.OrderSummary{
		SalesData:   []domain.MonthlySales{},
		LatestSales: []*domain.Order{},
	}

	err := r.db.QueryRowContext(ctx, `SELECT
	        (SELECT COUNT(*) FROM orders),
	        (SELECT COUNT(*) FROM products),
	        (SELECT COUNT(*) FROM users),
	        (SELECT COALESCE(SUM(total_price), 0) FROM orders)`,
	).Scan(&summary.OrdersCount, &summary.ProductsCount, &summary.UsersCount, &summary.TotalSales)
	if err != nil {
		return nil, fmt.Errorf("query order counts: %w", err)
	}

	if err := r.loadMonthlySales(ctx, summary); err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+`
	          FROM orders o LEFT JOIN users u ON u.id = o.user_id
	          ORDER BY o.created_at DESC
	          LIMIT $1`, latest)
	if err != nil {
		return nil, fmt.Errorf("query latest orders: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		summary.LatestSales = append(summary.LatestSales, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return summary, nil
}

// Months come back oldest first.
func (r *Repository) loadMonthlySales(ctx context.Context, summary *domain.OrderSummary) error {
	rows, err := r.db.QueryContext(ctx, `SELECT to_char(created_at, 'MM/YY') AS month, SUM(total_price)
	          FROM orders
	          GROUP BY month
	          ORDER BY MIN(created_at)`)
	if err != nil {
		return fmt.Errorf("query monthly sales: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			month string
			total decimal.Decimal
		)
		if err := rows.Scan(&month, &total); err != nil {
			return fmt.Errorf("scan monthly sales row: %w", err)
		}
		summary.SalesData = append(summary.SalesData, domain.MonthlySales{Month: month, TotalSales: total})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("row iteration error: %w", err)
	}
	return nil
}
