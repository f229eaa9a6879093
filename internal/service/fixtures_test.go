package service

import (
	"time"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/pricing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type testEnv struct {
	store  *memStore
	cache  *mockCache
	pages  *mockPages
	paypal *mockPayPal
	stripe *mockStripe

	carts    *CartService
	orders   *OrderService
	payments *PaymentService
	reviews  *ReviewService
	users    *UserService
}

func newTestEnv() *testEnv {
	env := &testEnv{
		store:  newMemStore(),
		cache:  newMockCache(),
		pages:  &mockPages{},
		paypal: &mockPayPal{},
		stripe: newMockStripe(),
	}
	log := zap.NewNop()
	env.carts = NewCartService(env.store, env.cache, env.pages, log)
	env.orders = NewOrderService(env.store, env.cache, log)
	env.payments = NewPaymentService(env.store, env.paypal, env.stripe, env.pages, log, time.Second)
	env.reviews = NewReviewService(env.store, env.pages, log)
	env.users = NewUserService(env.store)
	return env
}

func (env *testEnv) newProduct(price string, stock int) *domain.Product {
	id := uuid.New()
	return env.store.addProduct(&domain.Product{
		ID:    id,
		Name:  "Polo " + id.String()[:4],
		Slug:  "polo-" + id.String()[:8],
		Image: "polo.jpg",
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
}

// newCustomer registers a user with an address and the given payment method.
func (env *testEnv) newCustomer(method domain.PaymentMethod) (*domain.User, domain.Actor) {
	u := env.store.addUser(&domain.User{
		ID:    uuid.New(),
		Name:  "Alex Wong",
		Email: "alex@example.com",
		Role:  domain.RoleUser,
		Address: &domain.ShippingAddress{
			FullName:      "Alex Wong",
			StreetAddress: "Khreshchatyk 1",
			City:          "Kyiv",
			PostalCode:    "01001",
			Country:       "Ukraine",
		},
		PaymentMethod: method,
	})
	return u, domain.Actor{UserID: u.ID, Role: domain.RoleUser, AnonymousKey: uuid.NewString()}
}

func (env *testEnv) newAdmin() domain.Actor {
	u := env.store.addUser(&domain.User{ID: uuid.New(), Name: "Admin", Email: "admin@example.com", Role: domain.RoleAdmin})
	return domain.Actor{UserID: u.ID, Role: domain.RoleAdmin}
}

// newOrder stores an unpaid order for user with one line per product.
func (env *testEnv) newOrder(user *domain.User, qty int, products ...*domain.Product) *domain.Order {
	cart := &domain.Cart{ID: uuid.New()}
	for _, p := range products {
		cart.Items = append(cart.Items, lineFromProduct(p, qty))
	}
	cart.PriceBreakdown = pricing.Calculate(cart.Items)
	order := domain.NewOrderFromCart(cart, user)
	env.store.putOrder(order)
	return order
}

func anonymous() domain.Actor {
	return domain.Actor{AnonymousKey: uuid.NewString()}
}
