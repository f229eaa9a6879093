package cache

import (
	"context"
	"errors"

	"github.com/dimamanhura/rozetka/internal/domain"
)

// CartCache holds read-through copies of carts keyed by Actor.CartKey.
type CartCache interface {
	Get(ctx context.Context, cartKey string) (*domain.Cart, error)
	Set(ctx context.Context, cartKey string, cart *domain.Cart) error
	Delete(ctx context.Context, cartKey string) error
}

// PageInvalidator drops cached product pages after stock or rating changes.
type PageInvalidator interface {
	InvalidateProductPage(ctx context.Context, slug string) error
}

var ErrCacheMiss = errors.New("cache miss")
