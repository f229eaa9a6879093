package repository

import (
	"context"
	"errors"
	"time"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/google/uuid"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrOrderNotFound    = errors.New("order not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrReviewNotFound   = errors.New("review not found")
	ErrOrderAlreadyPaid = errors.New("order is already paid")
	ErrOrderNotPaid     = errors.New("order is not paid")
	ErrDuplicate        = errors.New("record already exists")
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

// Reader holds the queries that are valid both inside and outside a transaction.
type Reader interface {
	GetCart(ctx context.Context, actor domain.Actor) (*domain.Cart, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrdersByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Order, int, error)
	ListOrders(ctx context.Context, customerName string, limit, offset int) ([]*domain.Order, int, error)
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListReviews(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error)
	GetReview(ctx context.Context, userID, productID uuid.UUID) (*domain.Review, error)
}

// Tx is a unit of work. Lock* methods take row locks held until commit.
type Tx interface {
	Reader

	LockCart(ctx context.Context, actor domain.Actor) (*domain.Cart, error)
	LockAnonymousCart(ctx context.Context, sessionCartID string) (*domain.Cart, error)
	CreateCart(ctx context.Context, cart *domain.Cart) error
	UpdateCart(ctx context.Context, cart *domain.Cart) error
	BindCartToUser(ctx context.Context, cartID, userID uuid.UUID) error
	DeleteCart(ctx context.Context, cartID uuid.UUID) (int64, error)

	LockProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) error

	CreateOrder(ctx context.Context, order *domain.Order) error
	LockOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	SetPaymentResult(ctx context.Context, orderID uuid.UUID, result *domain.PaymentResult) error
	MarkOrderPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time, result *domain.PaymentResult) error
	MarkOrderDelivered(ctx context.Context, orderID uuid.UUID, deliveredAt time.Time) error

	UpsertReview(ctx context.Context, review *domain.Review) (bool, error)
	RefreshProductRating(ctx context.Context, productID uuid.UUID) error

	InsertOutboxEvent(ctx context.Context, aggregateID, eventType string, payload []byte) error
}

type Store interface {
	Reader
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error
	UpdateUserAddress(ctx context.Context, userID uuid.UUID, address domain.ShippingAddress) error
	UpdateUserPaymentMethod(ctx context.Context, userID uuid.UUID, method domain.PaymentMethod) error
	DeleteOrder(ctx context.Context, id uuid.UUID) error
	GetOrderSummary(ctx context.Context, latest int) (*domain.OrderSummary, error)
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
	DeleteProcessedEvents(ctx context.Context, before time.Time) (int64, error)
}
