package service

import (
	"context"
	"errors"
	"time"

	"github.com/dimamanhura/rozetka/internal/cache"
	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/pricing"
	"github.com/dimamanhura/rozetka/internal/repository"
	"github.com/dimamanhura/rozetka/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type AddItemRequest struct {
	ProductID uuid.UUID `json:"productId"`
	Qty       int       `json:"qty"`
}

// CartChange is the outcome of a cart mutation: the cart as committed and
// the confirmation shown to the shopper.
type CartChange struct {
	Cart    *domain.Cart
	Message string
}

type CartService struct {
	store repository.Store
	cache cache.CartCache
	pages cache.PageInvalidator
	log   *zap.Logger
	sfg   singleflight.Group // Prevents cache stampede
	now   func() time.Time
}

func NewCartService(store repository.Store, c cache.CartCache, pages cache.PageInvalidator, log *zap.Logger) *CartService {
	return &CartService{
		store: store,
		cache: c,
		pages: pages,
		log:   log,
		now:   time.Now,
	}
}

// GetCart never fails on absence: a shopper without a cart gets an empty one
// with zero prices.
func (s *CartService) GetCart(ctx context.Context, actor domain.Actor) (*domain.Cart, error) {
	key := actor.CartKey()

	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, key)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.WithContext(ctx, s.log).Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}

		cart, err = s.store.GetCart(ctx, actor)
		if errors.Is(err, repository.ErrCartNotFound) {
			return emptyCart(actor), nil
		}
		if err != nil {
			return nil, err
		}

		// a write committed after the load above carries a higher version,
		// so this set cannot replace it in the cache
		s.storeCart(ctx, key, cart)
		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// AddItem puts one product into the actor's cart, creating the cart on first
// use. An existing line grows by exactly one unit. Stock is checked under the
// cart row lock so concurrent adds cannot both pass the check.
func (s *CartService) AddItem(ctx context.Context, actor domain.Actor, req AddItemRequest) (*CartChange, error) {
	if err := validateAddItem(actor, &req); err != nil {
		return nil, err
	}

	cart, product, existed, err := s.addItem(ctx, actor, req)
	if errors.Is(err, repository.ErrDuplicate) {
		// another request created the cart first, it is there to lock now
		cart, product, existed, err = s.addItem(ctx, actor, req)
	}
	if err != nil {
		return nil, err
	}

	s.storeCart(ctx, actor.CartKey(), cart)
	s.invalidatePage(ctx, product.Slug)

	msg := product.Name + " added to cart"
	if existed {
		msg = product.Name + " updated in cart"
	}
	return &CartChange{Cart: cart, Message: msg}, nil
}

// addItem reports whether the product already had a line in the cart.
func (s *CartService) addItem(ctx context.Context, actor domain.Actor, req AddItemRequest) (*domain.Cart, *domain.Product, bool, error) {
	var (
		cart    *domain.Cart
		product *domain.Product
		existed bool
	)

	err := s.store.WithTransaction(ctx, func(tx repository.Tx) error {
		p, err := tx.GetProduct(ctx, req.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) {
			return NotFound("product")
		}
		if err != nil {
			return err
		}
		product = p

		c, err := tx.LockCart(ctx, actor)
		if errors.Is(err, repository.ErrCartNotFound) {
			if p.Stock < req.Qty {
				return ErrOutOfStock
			}
			cart = s.newCart(actor, lineFromProduct(p, req.Qty))
			return tx.CreateCart(ctx, cart)
		}
		if err != nil {
			return err
		}

		if i := c.Line(p.ID); i >= 0 {
			if p.Stock < c.Items[i].Qty+1 {
				return ErrOutOfStock
			}
			c.Items[i].Qty++
			existed = true
		} else {
			if p.Stock < req.Qty {
				return ErrOutOfStock
			}
			c.Items = append(c.Items, lineFromProduct(p, req.Qty))
		}

		c.PriceBreakdown = pricing.Calculate(c.Items)
		c.UpdatedAt = s.now().UTC()
		cart = c
		return tx.UpdateCart(ctx, c)
	})
	if err != nil {
		return nil, nil, false, err
	}
	return cart, product, existed, nil
}

// RemoveItem takes one unit of a product out of the cart and drops the line
// when it reaches zero.
func (s *CartService) RemoveItem(ctx context.Context, actor domain.Actor, productID uuid.UUID) (*CartChange, error) {
	var (
		cart *domain.Cart
		line domain.CartLineItem
	)

	err := s.store.WithTransaction(ctx, func(tx repository.Tx) error {
		c, err := tx.LockCart(ctx, actor)
		if errors.Is(err, repository.ErrCartNotFound) {
			return NotFound("cart")
		}
		if err != nil {
			return err
		}

		i := c.Line(productID)
		if i < 0 {
			return NotFound("item")
		}
		line = c.Items[i]

		if c.Items[i].Qty <= 1 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		} else {
			c.Items[i].Qty--
		}

		c.PriceBreakdown = pricing.Calculate(c.Items)
		c.UpdatedAt = s.now().UTC()
		cart = c
		return tx.UpdateCart(ctx, c)
	})
	if err != nil {
		return nil, err
	}

	s.storeCart(ctx, actor.CartKey(), cart)
	s.invalidatePage(ctx, line.Slug)
	return &CartChange{Cart: cart, Message: line.Name + " was removed from cart"}, nil
}

// MergeAnonymousCart runs after sign-in. The anonymous cart becomes the
// user's cart unless the user already has one, in which case it is dropped.
// The session key is left with an empty cart in the cache whose version is
// newer than anything the anonymous cart ever had.
func (s *CartService) MergeAnonymousCart(ctx context.Context, actor domain.Actor) error {
	if !actor.IsAuthenticated() {
		return ErrUnauthenticated
	}
	if actor.AnonymousKey == "" {
		return nil
	}

	var (
		bound     *domain.Cart
		tombstone int64
	)
	err := s.store.WithTransaction(ctx, func(tx repository.Tx) error {
		anon, err := tx.LockAnonymousCart(ctx, actor.AnonymousKey)
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		_, err = tx.LockCart(ctx, actor)
		if errors.Is(err, repository.ErrCartNotFound) {
			if err := tx.BindCartToUser(ctx, anon.ID, actor.UserID); err != nil {
				return err
			}
			bound, err = tx.LockCart(ctx, actor)
			if err != nil {
				return err
			}
			tombstone = bound.Version
			return nil
		}
		if err != nil {
			return err
		}
		tombstone, err = tx.DeleteCart(ctx, anon.ID)
		return err
	})
	if err != nil {
		return err
	}
	if tombstone == 0 {
		return nil
	}

	anonymous := domain.Actor{AnonymousKey: actor.AnonymousKey}
	cleared := emptyCart(anonymous)
	cleared.Version = tombstone
	s.storeCart(ctx, anonymous.CartKey(), cleared)
	if bound != nil {
		s.storeCart(ctx, actor.CartKey(), bound)
	}
	return nil
}

func (s *CartService) newCart(actor domain.Actor, line domain.CartLineItem) *domain.Cart {
	now := s.now().UTC()
	cart := &domain.Cart{
		ID:            uuid.New(),
		SessionCartID: actor.AnonymousKey,
		Items:         []domain.CartLineItem{line},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if actor.IsAuthenticated() {
		userID := actor.UserID
		cart.UserID = &userID
	}
	cart.PriceBreakdown = pricing.Calculate(cart.Items)
	return cart
}

func (s *CartService) storeCart(ctx context.Context, key string, cart *domain.Cart) {
	writeThrough(ctx, s.cache, s.log, key, cart)
}

// writeThrough caches a committed cart. When the cache refuses the write the
// entry is dropped so the next read goes to the store.
func writeThrough(ctx context.Context, c cache.CartCache, log *zap.Logger, key string, cart *domain.Cart) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	err := c.Set(ctx, key, cart)
	if err == nil {
		return
	}
	logger.WithContext(ctx, log).Warn("cache set failed", zap.String("key", key), zap.Error(err))
	if err := c.Delete(ctx, key); err != nil {
		logger.WithContext(ctx, log).Warn("cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CartService) invalidatePage(ctx context.Context, slug string) {
	if slug == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.pages.InvalidateProductPage(ctx, slug); err != nil {
		logger.WithContext(ctx, s.log).Warn("product page invalidate failed", zap.String("slug", slug), zap.Error(err))
	}
}

func emptyCart(actor domain.Actor) *domain.Cart {
	cart := &domain.Cart{
		SessionCartID:  actor.AnonymousKey,
		Items:          []domain.CartLineItem{},
		PriceBreakdown: pricing.Zero(),
	}
	if actor.IsAuthenticated() {
		userID := actor.UserID
		cart.UserID = &userID
	}
	return cart
}

func lineFromProduct(p *domain.Product, qty int) domain.CartLineItem {
	return domain.CartLineItem{
		ProductID: p.ID,
		Name:      p.Name,
		Slug:      p.Slug,
		Image:     p.Image,
		Price:     p.Price,
		Qty:       qty,
	}
}

func validateAddItem(actor domain.Actor, req *AddItemRequest) error {
	fields := map[string]string{}
	if !actor.IsAuthenticated() && actor.AnonymousKey == "" {
		fields["sessionCartId"] = "is required"
	}
	if req.ProductID == uuid.Nil {
		fields["productId"] = "is required"
	}
	if req.Qty < 0 {
		fields["qty"] = "must be a non-negative number"
	}
	if len(fields) > 0 {
		return Validation(fields)
	}
	if req.Qty == 0 {
		req.Qty = 1
	}
	return nil
}
