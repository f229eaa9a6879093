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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const DefaultPageSize = 10

var tracer = otel.Tracer("github.com/dimamanhura/rozetka/internal/service")

type OrderPage struct {
	Data       []*domain.Order `json:"data"`
	TotalPages int             `json:"totalPages"`
}

type OrderService struct {
	store repository.Store
	cache cache.CartCache
	log   *zap.Logger
}

func NewOrderService(store repository.Store, c cache.CartCache, log *zap.Logger) *OrderService {
	return &OrderService{
		store: store,
		cache: c,
		log:   log,
	}
}

// CreateOrder turns the actor's cart into an order. The order row, its items
// and the cleared cart are written in one transaction.
func (s *OrderService) CreateOrder(ctx context.Context, actor domain.Actor) (uuid.UUID, error) {
	ctx, span := tracer.Start(ctx, "OrderService.CreateOrder")
	defer span.End()

	if !actor.IsAuthenticated() {
		return uuid.Nil, ErrUnauthenticated
	}

	cart, err := s.store.GetCart(ctx, actor)
	if errors.Is(err, repository.ErrCartNotFound) || (err == nil && cart.IsEmpty()) {
		return uuid.Nil, ErrEmptyCart
	}
	if err != nil {
		return uuid.Nil, err
	}

	user, err := s.store.GetUser(ctx, actor.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return uuid.Nil, NotFound("user")
	}
	if err != nil {
		return uuid.Nil, err
	}
	if user.Address == nil {
		return uuid.Nil, ErrMissingAddress
	}
	if user.PaymentMethod == "" {
		return uuid.Nil, ErrMissingPaymentMethod
	}

	var (
		order   *domain.Order
		cleared *domain.Cart
	)
	err = s.store.WithTransaction(ctx, func(tx repository.Tx) error {
		locked, err := tx.LockCart(ctx, actor)
		if errors.Is(err, repository.ErrCartNotFound) {
			return ErrEmptyCart
		}
		if err != nil {
			return err
		}
		if locked.IsEmpty() {
			return ErrEmptyCart
		}

		order = domain.NewOrderFromCart(locked, user)
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}

		locked.Items = []domain.CartLineItem{}
		locked.PriceBreakdown = pricing.Zero()
		locked.UpdatedAt = time.Now().UTC()
		cleared = locked
		return tx.UpdateCart(ctx, locked)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "create order failed")
		if KindOf(err) != KindInternal {
			return uuid.Nil, err
		}
		logger.WithContext(ctx, s.log).Error("create order failed", zap.Stringer("user_id", actor.UserID), zap.Error(err))
		return uuid.Nil, orderCreationFailed(err)
	}

	span.SetAttributes(attribute.String("order.id", order.ID.String()))
	writeThrough(ctx, s.cache, s.log, actor.CartKey(), cleared)
	return order.ID, nil
}

// GetOrderByID returns the order with its items and customer. Shoppers see
// only their own orders, admins see all of them.
func (s *OrderService) GetOrderByID(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error) {
	order, err := s.store.GetOrderByID(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, NotFound("order")
	}
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && order.UserID != actor.UserID {
		return nil, NotFound("order")
	}
	return order, nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, actor domain.Actor, page, limit int) (*OrderPage, error) {
	if !actor.IsAuthenticated() {
		return nil, ErrUnauthenticated
	}
	page, limit = normalizePage(page, limit)

	orders, total, err := s.store.ListOrdersByUserID(ctx, actor.UserID, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Data: orders, TotalPages: totalPages(total, limit)}, nil
}

// ListAllOrders is the admin listing, optionally filtered by customer name.
func (s *OrderService) ListAllOrders(ctx context.Context, actor domain.Actor, page, limit int, query string) (*OrderPage, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	page, limit = normalizePage(page, limit)

	orders, total, err := s.store.ListOrders(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &OrderPage{Data: orders, TotalPages: totalPages(total, limit)}, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	err := s.store.DeleteOrder(ctx, id)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return NotFound("order")
	}
	if err != nil {
		return err
	}
	logger.WithContext(ctx, s.log).Info("order deleted", zap.Stringer("order_id", id), zap.Stringer("by", actor.UserID))
	return nil
}

// SummaryLatestOrders is how many recent orders the admin summary lists.
const SummaryLatestOrders = 6

// GetOrderSummary is the admin dashboard overview: entity counts, total and
// monthly sales, and the latest orders with their customers.
func (s *OrderService) GetOrderSummary(ctx context.Context, actor domain.Actor) (*domain.OrderSummary, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.store.GetOrderSummary(ctx, SummaryLatestOrders)
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	return page, limit
}

func totalPages(total, limit int) int {
	return (total + limit - 1) / limit
}
