package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/google/uuid"
)

func (q *queries) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT id, name, email, role, address, payment_method FROM users WHERE id = $1`

	var u domain.User
	var addressJSON []byte
	var method sql.NullString
	err := q.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &u.Role, &addressJSON, &method)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user by id: %w", err)
	}

	if addressJSON != nil {
		var addr domain.ShippingAddress
		if err := json.Unmarshal(addressJSON, &addr); err != nil {
			return nil, fmt.Errorf("unmarshal user address: %w", err)
		}
		u.Address = &addr
	}
	if method.Valid {
		u.PaymentMethod = domain.PaymentMethod(method.String)
	}
	return &u, nil
}

// CreateUser mirrors an account owned by the identity provider.
func (r *Repository) CreateUser(ctx context.Context, u *domain.User) error {
	role := u.Role
	if role == "" {
		role = domain.RoleUser
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, role) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Name, u.Email, role)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *Repository) UpdateUserAddress(ctx context.Context, userID uuid.UUID, address domain.ShippingAddress) error {
	addressJSON, err := json.Marshal(address)
	if err != nil {
		return fmt.Errorf("marshal address: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE users SET address = $2 WHERE id = $1`, userID, addressJSON)
	if err != nil {
		return fmt.Errorf("update user address: %w", err)
	}
	return expectOneRow(res, ErrUserNotFound)
}

func (r *Repository) UpdateUserPaymentMethod(ctx context.Context, userID uuid.UUID, method domain.PaymentMethod) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET payment_method = $2 WHERE id = $1`, userID, string(method))
	if err != nil {
		return fmt.Errorf("update user payment method: %w", err)
	}
	return expectOneRow(res, ErrUserNotFound)
}
