package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dimamanhura/rozetka/internal/cache"
	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/payment/paypal"
	stripepay "github.com/dimamanhura/rozetka/internal/payment/stripe"
	"github.com/dimamanhura/rozetka/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memState is the data behind memStore. Its methods assume the caller holds
// memStore.mu.
type memState struct {
	carts    map[uuid.UUID]*domain.Cart
	orders   map[uuid.UUID]*domain.Order
	users    map[uuid.UUID]*domain.User
	products map[uuid.UUID]*domain.Product
	reviews  map[uuid.UUID]*domain.Review
	outbox   []repository.OutboxEvent
	failOnce map[string]error
	calls    map[string]int
	// seq outlives rollbacks like a database sequence does
	seq *int64
}

func newMemState() *memState {
	return &memState{
		seq:      new(int64),
		carts:    map[uuid.UUID]*domain.Cart{},
		orders:   map[uuid.UUID]*domain.Order{},
		users:    map[uuid.UUID]*domain.User{},
		products: map[uuid.UUID]*domain.Product{},
		reviews:  map[uuid.UUID]*domain.Review{},
		failOnce: map[string]error{},
		calls:    map[string]int{},
	}
}

func (st *memState) clone() *memState {
	out := newMemState()
	for id, c := range st.carts {
		out.carts[id] = cloneCart(c)
	}
	for id, o := range st.orders {
		out.orders[id] = cloneOrder(o)
	}
	for id, u := range st.users {
		out.users[id] = cloneUser(u)
	}
	for id, p := range st.products {
		cp := *p
		out.products[id] = &cp
	}
	for id, r := range st.reviews {
		cp := *r
		out.reviews[id] = &cp
	}
	out.outbox = append(out.outbox, st.outbox...)
	// injected failures and call counts survive a rollback
	out.failOnce = st.failOnce
	out.calls = st.calls
	out.seq = st.seq
	return out
}

func (st *memState) nextVersion() int64 {
	*st.seq++
	return *st.seq
}

func (st *memState) hit(name string) error {
	st.calls[name]++
	if err, ok := st.failOnce[name]; ok {
		delete(st.failOnce, name)
		return err
	}
	return nil
}

func cloneCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = append([]domain.CartLineItem{}, c.Items...)
	if c.UserID != nil {
		id := *c.UserID
		cp.UserID = &id
	}
	return &cp
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem{}, o.Items...)
	if o.PaymentResult != nil {
		r := *o.PaymentResult
		cp.PaymentResult = &r
	}
	if o.PaidAt != nil {
		t := *o.PaidAt
		cp.PaidAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	cp.User = nil
	return &cp
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	if u.Address != nil {
		a := *u.Address
		cp.Address = &a
	}
	return &cp
}

func (st *memState) findCart(actor domain.Actor) *domain.Cart {
	for _, c := range st.carts {
		if actor.IsAuthenticated() {
			if c.UserID != nil && *c.UserID == actor.UserID {
				return c
			}
			continue
		}
		if c.UserID == nil && c.SessionCartID == actor.AnonymousKey {
			return c
		}
	}
	return nil
}

func (st *memState) withUser(o *domain.Order) *domain.Order {
	out := cloneOrder(o)
	if u, ok := st.users[o.UserID]; ok {
		out.User = &domain.OrderUser{Name: u.Name, Email: u.Email}
	}
	return out
}

func (st *memState) GetCart(_ context.Context, actor domain.Actor) (*domain.Cart, error) {
	c := st.findCart(actor)
	if c == nil {
		return nil, repository.ErrCartNotFound
	}
	return cloneCart(c), nil
}

func (st *memState) LockCart(ctx context.Context, actor domain.Actor) (*domain.Cart, error) {
	return st.GetCart(ctx, actor)
}

func (st *memState) LockAnonymousCart(ctx context.Context, sessionCartID string) (*domain.Cart, error) {
	return st.GetCart(ctx, domain.Actor{AnonymousKey: sessionCartID})
}

func (st *memState) CreateCart(_ context.Context, cart *domain.Cart) error {
	if err := st.hit("CreateCart"); err != nil {
		return err
	}
	actor := domain.Actor{AnonymousKey: cart.SessionCartID}
	if cart.UserID != nil {
		actor.UserID = *cart.UserID
	}
	if st.findCart(actor) != nil {
		return repository.ErrDuplicate
	}
	cart.Version = st.nextVersion()
	st.carts[cart.ID] = cloneCart(cart)
	return nil
}

func (st *memState) UpdateCart(_ context.Context, cart *domain.Cart) error {
	if err := st.hit("UpdateCart"); err != nil {
		return err
	}
	if _, ok := st.carts[cart.ID]; !ok {
		return repository.ErrCartNotFound
	}
	cart.Version = st.nextVersion()
	st.carts[cart.ID] = cloneCart(cart)
	return nil
}

func (st *memState) BindCartToUser(_ context.Context, cartID, userID uuid.UUID) error {
	c, ok := st.carts[cartID]
	if !ok {
		return repository.ErrCartNotFound
	}
	if st.findCart(domain.Actor{UserID: userID}) != nil {
		return repository.ErrDuplicate
	}
	c.UserID = &userID
	c.Version = st.nextVersion()
	return nil
}

func (st *memState) DeleteCart(_ context.Context, cartID uuid.UUID) (int64, error) {
	if _, ok := st.carts[cartID]; !ok {
		return 0, repository.ErrCartNotFound
	}
	delete(st.carts, cartID)
	return st.nextVersion(), nil
}

func (st *memState) DecrementStock(_ context.Context, productID uuid.UUID, qty int) error {
	if err := st.hit("DecrementStock"); err != nil {
		return err
	}
	p, ok := st.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock -= qty
	return nil
}

func (st *memState) CreateOrder(_ context.Context, order *domain.Order) error {
	if err := st.hit("CreateOrder"); err != nil {
		return err
	}
	if _, ok := st.orders[order.ID]; ok {
		return repository.ErrDuplicate
	}
	st.orders[order.ID] = cloneOrder(order)
	return nil
}

func (st *memState) GetOrderByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := st.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return st.withUser(o), nil
}

func (st *memState) LockOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return st.GetOrderByID(ctx, id)
}

func (st *memState) listOrders(match func(o *domain.Order) bool, limit, offset int) ([]*domain.Order, int, error) {
	var all []*domain.Order
	for _, o := range st.orders {
		if match(o) {
			all = append(all, st.withUser(o))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return []*domain.Order{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (st *memState) ListOrdersByUserID(_ context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Order, int, error) {
	return st.listOrders(func(o *domain.Order) bool { return o.UserID == userID }, limit, offset)
}

func (st *memState) ListOrders(_ context.Context, customerName string, limit, offset int) ([]*domain.Order, int, error) {
	q := strings.ToLower(customerName)
	return st.listOrders(func(o *domain.Order) bool {
		u, ok := st.users[o.UserID]
		return q == "" || (ok && strings.Contains(strings.ToLower(u.Name), q))
	}, limit, offset)
}

func (st *memState) SetPaymentResult(_ context.Context, orderID uuid.UUID, result *domain.PaymentResult) error {
	o, ok := st.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	r := *result
	o.PaymentResult = &r
	return nil
}

func (st *memState) MarkOrderPaid(_ context.Context, orderID uuid.UUID, paidAt time.Time, result *domain.PaymentResult) error {
	if err := st.hit("MarkOrderPaid"); err != nil {
		return err
	}
	o, ok := st.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if o.IsPaid {
		return repository.ErrOrderAlreadyPaid
	}
	o.IsPaid = true
	o.PaidAt = &paidAt
	o.PaymentResult = nil
	if result != nil {
		r := *result
		o.PaymentResult = &r
	}
	return nil
}

func (st *memState) MarkOrderDelivered(_ context.Context, orderID uuid.UUID, deliveredAt time.Time) error {
	o, ok := st.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if !o.IsPaid || o.IsDelivered {
		return repository.ErrOrderNotPaid
	}
	o.IsDelivered = true
	o.DeliveredAt = &deliveredAt
	return nil
}

func (st *memState) GetUser(_ context.Context, id uuid.UUID) (*domain.User, error) {
	u, ok := st.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (st *memState) GetProduct(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := st.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (st *memState) LockProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if err := st.hit("LockProduct"); err != nil {
		return nil, err
	}
	return st.GetProduct(ctx, id)
}

func (st *memState) ListReviews(_ context.Context, productID uuid.UUID) ([]*domain.Review, error) {
	out := []*domain.Review{}
	for _, r := range st.reviews {
		if r.ProductID == productID {
			cp := *r
			if u, ok := st.users[r.UserID]; ok {
				cp.UserName = u.Name
			}
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (st *memState) GetReview(_ context.Context, userID, productID uuid.UUID) (*domain.Review, error) {
	for _, r := range st.reviews {
		if r.UserID == userID && r.ProductID == productID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrReviewNotFound
}

func (st *memState) UpsertReview(_ context.Context, review *domain.Review) (bool, error) {
	for _, r := range st.reviews {
		if r.UserID == review.UserID && r.ProductID == review.ProductID {
			r.Title = review.Title
			r.Description = review.Description
			r.Rating = review.Rating
			review.ID = r.ID
			review.CreatedAt = r.CreatedAt
			return false, nil
		}
	}
	cp := *review
	st.reviews[review.ID] = &cp
	return true, nil
}

func (st *memState) RefreshProductRating(_ context.Context, productID uuid.UUID) error {
	p, ok := st.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	var sum, n int64
	for _, r := range st.reviews {
		if r.ProductID == productID {
			sum += int64(r.Rating)
			n++
		}
	}
	p.NumReviews = int(n)
	p.Rating = decimal.Zero
	if n > 0 {
		p.Rating = decimal.NewFromInt(sum).Div(decimal.NewFromInt(n))
	}
	return nil
}

func (st *memState) InsertOutboxEvent(_ context.Context, aggregateID, eventType string, payload []byte) error {
	if err := st.hit("InsertOutboxEvent"); err != nil {
		return err
	}
	st.outbox = append(st.outbox, repository.OutboxEvent{
		ID:          int64(len(st.outbox) + 1),
		AggregateID: aggregateID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   time.Now(),
	})
	return nil
}

// memStore is a repository.Store whose transactions run one at a time and
// roll back to a snapshot on error. It cannot show what row locks do under
// real concurrency; the repository package tests that against Postgres.
type memStore struct {
	mu sync.Mutex
	st *memState
}

func newMemStore() *memStore {
	return &memStore{st: newMemState()}
}

func (s *memStore) WithTransaction(_ context.Context, fn func(tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(s.st); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *memStore) GetCart(ctx context.Context, actor domain.Actor) (*domain.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetCart(ctx, actor)
}

func (s *memStore) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetOrderByID(ctx, id)
}

func (s *memStore) ListOrdersByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListOrdersByUserID(ctx, userID, limit, offset)
}

func (s *memStore) ListOrders(ctx context.Context, customerName string, limit, offset int) ([]*domain.Order, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListOrders(ctx, customerName, limit, offset)
}

func (s *memStore) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetUser(ctx, id)
}

func (s *memStore) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetProduct(ctx, id)
}

func (s *memStore) ListReviews(ctx context.Context, productID uuid.UUID) ([]*domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.ListReviews(ctx, productID)
}

func (s *memStore) GetReview(ctx context.Context, userID, productID uuid.UUID) (*domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.GetReview(ctx, userID, productID)
}

func (s *memStore) UpdateUserAddress(_ context.Context, userID uuid.UUID, address domain.ShippingAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Address = &address
	return nil
}

func (s *memStore) UpdateUserPaymentMethod(_ context.Context, userID uuid.UUID, method domain.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PaymentMethod = method
	return nil
}

func (s *memStore) DeleteOrder(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(s.st.orders, id)
	return nil
}

func (s *memStore) GetOrderSummary(_ context.Context, latest int) (*domain.OrderSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.st.hit("GetOrderSummary"); err != nil {
		return nil, err
	}

	summary := &domain.OrderSummary{
		OrdersCount:   len(s.st.orders),
		ProductsCount: len(s.st.products),
		UsersCount:    len(s.st.users),
		SalesData:     []domain.MonthlySales{},
	}
	byMonth := map[string]int{}
	for _, o := range s.st.orders {
		summary.TotalSales = summary.TotalSales.Add(o.TotalPrice)
		month := o.CreatedAt.Format("01/06")
		i, ok := byMonth[month]
		if !ok {
			i = len(summary.SalesData)
			byMonth[month] = i
			summary.SalesData = append(summary.SalesData, domain.MonthlySales{Month: month})
		}
		summary.SalesData[i].TotalSales = summary.SalesData[i].TotalSales.Add(o.TotalPrice)
	}

	summary.LatestSales, _, _ = s.st.listOrders(func(*domain.Order) bool { return true }, latest, 0)
	return summary, nil
}

func (s *memStore) failOnce(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.failOnce[method] = err
}

func (s *memStore) callCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.calls[method]
}

func (s *memStore) addUser(u *domain.User) *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = cloneUser(u)
	return u
}

func (s *memStore) addProduct(p *domain.Product) *domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.st.products[p.ID] = &cp
	return p
}

func (s *memStore) putCart(c *domain.Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Version = s.st.nextVersion()
	s.st.carts[c.ID] = cloneCart(c)
}

func (s *memStore) putOrder(o *domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.orders[o.ID] = cloneOrder(o)
}

func (s *memStore) stock(productID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.products[productID].Stock
}

func (s *memStore) product(productID uuid.UUID) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.st.products[productID]
}

func (s *memStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.orders)
}

func (s *memStore) cartCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.carts)
}

func (s *memStore) outbox() []repository.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.OutboxEvent{}, s.st.outbox...)
}

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}}
}

func (m *mockCache) Get(_ context.Context, key string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cloneCart(cart), nil
}

// Set keeps the higher version, as RedisCache does.
func (m *mockCache) Set(_ context.Context, key string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if cur, ok := m.carts[key]; ok && cur.Version > cart.Version {
		return nil
	}
	m.carts[key] = cloneCart(cart)
	return nil
}

func (m *mockCache) Delete(_ context.Context, key string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, key)
	return m.err
}

func (m *mockCache) cached(key string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	if c, ok := m.carts[key]; ok {
		return cloneCart(c)
	}
	return nil
}

func (m *mockCache) has(key string) bool {
	m.m.RLock()
	defer m.m.RUnlock()
	_, ok := m.carts[key]
	return ok
}

type mockPages struct {
	m     sync.Mutex
	slugs []string
}

func (m *mockPages) InvalidateProductPage(_ context.Context, slug string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.slugs = append(m.slugs, slug)
	return nil
}

func (m *mockPages) invalidated() []string {
	m.m.Lock()
	defer m.m.Unlock()
	return append([]string{}, m.slugs...)
}

type mockPayPal struct {
	m          sync.Mutex
	createID   string
	createErr  error
	capture    *paypal.Capture
	captureErr error
	captured   []string
}

func (m *mockPayPal) CreateOrder(context.Context, decimal.Decimal) (string, error) {
	m.m.Lock()
	defer m.m.Unlock()
	return m.createID, m.createErr
}

func (m *mockPayPal) CapturePayment(_ context.Context, orderID string) (*paypal.Capture, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.captured = append(m.captured, orderID)
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	return m.capture, nil
}

type mockStripe struct {
	m         sync.Mutex
	intents   map[string]*stripepay.Intent
	created   []int64
	event     *stripepay.Event
	parseErr  error
	createErr error
}

func newMockStripe() *mockStripe {
	return &mockStripe{intents: map[string]*stripepay.Intent{}}
}

func (m *mockStripe) CreateIntent(_ context.Context, orderID string, amountCents int64) (*stripepay.Intent, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, amountCents)
	return &stripepay.Intent{ID: "pi_1", OrderID: orderID, ClientSecret: "pi_1_secret", AmountCents: amountCents}, nil
}

func (m *mockStripe) GetIntent(_ context.Context, intentID string) (*stripepay.Intent, error) {
	m.m.Lock()
	defer m.m.Unlock()
	intent, ok := m.intents[intentID]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	return intent, nil
}

func (m *mockStripe) ParseEvent([]byte, string) (*stripepay.Event, error) {
	m.m.Lock()
	defer m.m.Unlock()
	return m.event, m.parseErr
}
