package http

import (
	"context"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/service"
	"github.com/google/uuid"
)

type mockCarts struct {
	actor   domain.Actor
	added   service.AddItemRequest
	removed uuid.UUID
	cart    *domain.Cart
	message string
	err     error
}

func (m *mockCarts) GetCart(_ context.Context, actor domain.Actor) (*domain.Cart, error) {
	m.actor = actor
	return m.cart, m.err
}

func (m *mockCarts) change() (*service.CartChange, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &service.CartChange{Cart: m.cart, Message: m.message}, nil
}

func (m *mockCarts) AddItem(_ context.Context, actor domain.Actor, req service.AddItemRequest) (*service.CartChange, error) {
	m.actor, m.added = actor, req
	return m.change()
}

func (m *mockCarts) RemoveItem(_ context.Context, actor domain.Actor, productID uuid.UUID) (*service.CartChange, error) {
	m.actor, m.removed = actor, productID
	return m.change()
}

func (m *mockCarts) MergeAnonymousCart(_ context.Context, actor domain.Actor) error {
	m.actor = actor
	return m.err
}

type mockOrders struct {
	actor     domain.Actor
	createdID uuid.UUID
	order     *domain.Order
	page      *service.OrderPage
	gotPage   int
	gotLimit  int
	gotQuery  string
	deletedID uuid.UUID
	summary   *domain.OrderSummary
	err       error
}

func (m *mockOrders) CreateOrder(_ context.Context, actor domain.Actor) (uuid.UUID, error) {
	m.actor = actor
	return m.createdID, m.err
}

func (m *mockOrders) GetOrderByID(_ context.Context, actor domain.Actor, _ uuid.UUID) (*domain.Order, error) {
	m.actor = actor
	return m.order, m.err
}

func (m *mockOrders) ListMyOrders(_ context.Context, actor domain.Actor, page, limit int) (*service.OrderPage, error) {
	m.actor, m.gotPage, m.gotLimit = actor, page, limit
	return m.page, m.err
}

func (m *mockOrders) ListAllOrders(_ context.Context, actor domain.Actor, page, limit int, query string) (*service.OrderPage, error) {
	m.actor, m.gotPage, m.gotLimit, m.gotQuery = actor, page, limit, query
	return m.page, m.err
}

func (m *mockOrders) DeleteOrder(_ context.Context, actor domain.Actor, id uuid.UUID) error {
	m.actor, m.deletedID = actor, id
	return m.err
}

func (m *mockOrders) GetOrderSummary(_ context.Context, actor domain.Actor) (*domain.OrderSummary, error) {
	m.actor = actor
	return m.summary, m.err
}

type mockPayments struct {
	actor      domain.Actor
	providerID string
	secret     string
	order      *domain.Order
	approvedID string
	intentID   string
	payload    []byte
	signature  string
	err        error
}

func (m *mockPayments) CreatePayPalOrder(_ context.Context, actor domain.Actor, _ uuid.UUID) (string, error) {
	m.actor = actor
	return m.providerID, m.err
}

func (m *mockPayments) ApprovePayPalOrder(_ context.Context, actor domain.Actor, _ uuid.UUID, providerOrderID string) (*domain.Order, error) {
	m.actor, m.approvedID = actor, providerOrderID
	return m.order, m.err
}

func (m *mockPayments) CreateStripePaymentIntent(_ context.Context, actor domain.Actor, _ uuid.UUID) (string, error) {
	m.actor = actor
	return m.secret, m.err
}

func (m *mockPayments) VerifyStripePayment(_ context.Context, actor domain.Actor, _ uuid.UUID, intentID string) (*domain.Order, error) {
	m.actor, m.intentID = actor, intentID
	return m.order, m.err
}

func (m *mockPayments) HandleStripeEvent(_ context.Context, payload []byte, signature string) error {
	m.payload, m.signature = payload, signature
	return m.err
}

func (m *mockPayments) MarkPaidCOD(_ context.Context, actor domain.Actor, _ uuid.UUID) (*domain.Order, error) {
	m.actor = actor
	return m.order, m.err
}

func (m *mockPayments) MarkDelivered(_ context.Context, actor domain.Actor, _ uuid.UUID) error {
	m.actor = actor
	return m.err
}

type mockReviews struct {
	actor   domain.Actor
	req     service.ReviewRequest
	created bool
	reviews []*domain.Review
	review  *domain.Review
	err     error
}

func (m *mockReviews) UpsertReview(_ context.Context, actor domain.Actor, req service.ReviewRequest) (bool, error) {
	m.actor, m.req = actor, req
	return m.created, m.err
}

func (m *mockReviews) ListReviews(context.Context, uuid.UUID) ([]*domain.Review, error) {
	return m.reviews, m.err
}

func (m *mockReviews) GetMyReview(_ context.Context, actor domain.Actor, _ uuid.UUID) (*domain.Review, error) {
	m.actor = actor
	return m.review, m.err
}

type mockUsers struct {
	actor  domain.Actor
	addr   domain.ShippingAddress
	method string
	err    error
}

func (m *mockUsers) UpdateAddress(_ context.Context, actor domain.Actor, addr domain.ShippingAddress) error {
	m.actor, m.addr = actor, addr
	return m.err
}

func (m *mockUsers) UpdatePaymentMethod(_ context.Context, actor domain.Actor, method string) error {
	m.actor, m.method = actor, method
	return m.err
}
