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

const cartColumns = `id, session_cart_id, user_id, items, items_price, shipping_price, tax_price, total_price, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCart(row rowScanner) (*domain.Cart, error) {
	var c domain.Cart
	var userID uuid.NullUUID
	var itemsJSON []byte
	err := row.Scan(
		&c.ID,
		&c.SessionCartID,
		&userID,
		&itemsJSON,
		&c.ItemsPrice,
		&c.ShippingPrice,
		&c.TaxPrice,
		&c.TotalPrice,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.Version,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan cart: %w", err)
	}
	if userID.Valid {
		id := userID.UUID
		c.UserID = &id
	}
	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return nil, fmt.Errorf("unmarshal cart items: %w", err)
	}
	return &c, nil
}

// Signed-in actors are matched by user id only; an anonymous key never
// reaches a cart that has been bound to a user.
func cartFilter(actor domain.Actor) (string, any) {
	if actor.IsAuthenticated() {
		return "user_id = $1", actor.UserID
	}
	return "session_cart_id = $1 AND user_id IS NULL", actor.AnonymousKey
}

func marshalItems(items []domain.CartLineItem) ([]byte, error) {
	if items == nil {
		items = []domain.CartLineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal cart items: %w", err)
	}
	return b, nil
}

func nullableUserID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func (q *queries) GetCart(ctx context.Context, actor domain.Actor) (*domain.Cart, error) {
	where, arg := cartFilter(actor)
	row := q.db.QueryRowContext(ctx, `SELECT `+cartColumns+` FROM carts WHERE `+where, arg)
	return scanCart(row)
}

func (t *txRepository) LockCart(ctx context.Context, actor domain.Actor) (*domain.Cart, error) {
	where, arg := cartFilter(actor)
	row := t.db.QueryRowContext(ctx, `SELECT `+cartColumns+` FROM carts WHERE `+where+` FOR UPDATE`, arg)
	return scanCart(row)
}

func (t *txRepository) LockAnonymousCart(ctx context.Context, sessionCartID string) (*domain.Cart, error) {
	return t.LockCart(ctx, domain.Actor{AnonymousKey: sessionCartID})
}

func (t *txRepository) CreateCart(ctx context.Context, cart *domain.Cart) error {
	itemsJSON, err := marshalItems(cart.Items)
	if err != nil {
		return err
	}

	query := `INSERT INTO carts (id, session_cart_id, user_id, items, items_price, shipping_price, tax_price, total_price, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	          RETURNING created_at, updated_at, version`

	err = t.db.QueryRowContext(ctx, query,
		cart.ID,
		cart.SessionCartID,
		nullableUserID(cart.UserID),
		itemsJSON,
		cart.ItemsPrice,
		cart.ShippingPrice,
		cart.TaxPrice,
		cart.TotalPrice,
	).Scan(&cart.CreatedAt, &cart.UpdatedAt, &cart.Version)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert cart: %w", err)
	}
	return nil
}

// UpdateCart draws a new version from cart_version_seq. The row is locked by
// then, so versions of one cart grow in commit order.
func (t *txRepository) UpdateCart(ctx context.Context, cart *domain.Cart) error {
	itemsJSON, err := marshalItems(cart.Items)
	if err != nil {
		return err
	}

	query := `UPDATE carts
	          SET items = $2, items_price = $3, shipping_price = $4, tax_price = $5, total_price = $6,
	              updated_at = NOW(), version = nextval('cart_version_seq')
	          WHERE id = $1
	          RETURNING updated_at, version`

	err = t.db.QueryRowContext(ctx, query,
		cart.ID,
		itemsJSON,
		cart.ItemsPrice,
		cart.ShippingPrice,
		cart.TaxPrice,
		cart.TotalPrice,
	).Scan(&cart.UpdatedAt, &cart.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCartNotFound
	}
	if err != nil {
		return fmt.Errorf("update cart: %w", err)
	}
	return nil
}

func (t *txRepository) BindCartToUser(ctx context.Context, cartID, userID uuid.UUID) error {
	res, err := t.db.ExecContext(ctx,
		`UPDATE carts SET user_id = $2, updated_at = NOW(), version = nextval('cart_version_seq') WHERE id = $1`,
		cartID, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("bind cart: %w", err)
	}
	return expectOneRow(res, ErrCartNotFound)
}

// DeleteCart removes the cart and returns a version newer than any it had,
// for callers that leave a tombstone in the cache.
func (t *txRepository) DeleteCart(ctx context.Context, cartID uuid.UUID) (int64, error) {
	var version int64
	err := t.db.QueryRowContext(ctx,
		`DELETE FROM carts WHERE id = $1 RETURNING nextval('cart_version_seq')`, cartID).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrCartNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("delete cart: %w", err)
	}
	return version, nil
}
