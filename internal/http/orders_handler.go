package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderService interface {
	CreateOrder(ctx context.Context, actor domain.Actor) (uuid.UUID, error)
	GetOrderByID(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	ListMyOrders(ctx context.Context, actor domain.Actor, page, limit int) (*service.OrderPage, error)
	ListAllOrders(ctx context.Context, actor domain.Actor, page, limit int, query string) (*service.OrderPage, error)
	DeleteOrder(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	GetOrderSummary(ctx context.Context, actor domain.Actor) (*domain.OrderSummary, error)
}

type OrdersHandler struct {
	base
	orders OrderService
}

func NewOrdersHandler(orders OrderService, log *zap.Logger, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{base: base{log: log, timeout: timeout}, orders: orders}
}

type createOrderResponse struct {
	OrderID    uuid.UUID `json:"orderId"`
	RedirectTo string    `json:"redirectTo"`
}

// POST /api/v1/orders
func (h *OrdersHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	id, err := h.orders.CreateOrder(ctx, actorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	res := service.ResultOf(nil, "order created")
	res.RedirectTo = "/order/" + id.String()
	respondJSON(w, http.StatusCreated, res.WithData(createOrderResponse{OrderID: id, RedirectTo: res.RedirectTo}))
}

// GET /api/v1/orders/{orderId}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	id, ok := uuidParam(r, "orderId")
	if !ok {
		h.badRequest(w, "orderId", "must be a valid id")
		return
	}

	order, err := h.orders.GetOrderByID(ctx, actorFromContext(r.Context()), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// GET /api/v1/orders/mine?page=&limit=
func (h *OrdersHandler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	page, limit := pageParams(r)
	res, err := h.orders.ListMyOrders(ctx, actorFromContext(r.Context()), page, limit)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GET /api/v1/admin/orders?page=&limit=&query=
func (h *OrdersHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	page, limit := pageParams(r)
	res, err := h.orders.ListAllOrders(ctx, actorFromContext(r.Context()), page, limit, r.URL.Query().Get("query"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// GET /api/v1/admin/orders/summary
func (h *OrdersHandler) GetOrderSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	summary, err := h.orders.GetOrderSummary(ctx, actorFromContext(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// DELETE /api/v1/admin/orders/{orderId}
func (h *OrdersHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.context(r)
	defer cancel()

	id, ok := uuidParam(r, "orderId")
	if !ok {
		h.badRequest(w, "orderId", "must be a valid id")
		return
	}

	err := h.orders.DeleteOrder(ctx, actorFromContext(r.Context()), id)
	h.respondResult(w, r, http.StatusOK, err, "order deleted successfully", nil)
}

// pageParams reads page and limit; bad or missing values fall back to the
// service defaults.
func pageParams(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return page, limit
}
