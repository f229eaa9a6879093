package grpc

import (
	"context"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/service"
	"github.com/dimamanhura/rozetka/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type OrderService interface {
	GetOrderByID(ctx context.Context, actor domain.Actor, id uuid.UUID) (*domain.Order, error)
	ListAllOrders(ctx context.Context, actor domain.Actor, page, limit int, query string) (*service.OrderPage, error)
	DeleteOrder(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	GetOrderSummary(ctx context.Context, actor domain.Actor) (*domain.OrderSummary, error)
}

type PaymentService interface {
	MarkPaidCOD(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error)
	MarkDelivered(ctx context.Context, actor domain.Actor, orderID uuid.UUID) error
}

type OrderRequest struct {
	OrderID string `json:"orderId"`
}

type ListOrdersRequest struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Query string `json:"query"`
}

type SummaryRequest struct{}

type OrderReply struct {
	Order *domain.Order `json:"order"`
}

type StatusReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// OrderAdminServer is the back-office API for orders.
type OrderAdminServer interface {
	GetOrder(ctx context.Context, req *OrderRequest) (*OrderReply, error)
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*service.OrderPage, error)
	MarkPaidCOD(ctx context.Context, req *OrderRequest) (*OrderReply, error)
	MarkDelivered(ctx context.Context, req *OrderRequest) (*StatusReply, error)
	DeleteOrder(ctx context.Context, req *OrderRequest) (*StatusReply, error)
	GetOrderSummary(ctx context.Context, req *SummaryRequest) (*domain.OrderSummary, error)
}

type AdminHandler struct {
	orders   OrderService
	payments PaymentService
	log      *zap.Logger
}

func NewAdminHandler(orders OrderService, payments PaymentService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{orders: orders, payments: payments, log: log}
}

func (h *AdminHandler) GetOrder(ctx context.Context, req *OrderRequest) (*OrderReply, error) {
	id, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	order, err := h.orders.GetOrderByID(ctx, actorFromContext(ctx), id)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &OrderReply{Order: order}, nil
}

func (h *AdminHandler) ListOrders(ctx context.Context, req *ListOrdersRequest) (*service.OrderPage, error) {
	page, err := h.orders.ListAllOrders(ctx, actorFromContext(ctx), req.Page, req.Limit, req.Query)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return page, nil
}

func (h *AdminHandler) MarkPaidCOD(ctx context.Context, req *OrderRequest) (*OrderReply, error) {
	id, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	order, err := h.payments.MarkPaidCOD(ctx, actorFromContext(ctx), id)
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return &OrderReply{Order: order}, nil
}

func (h *AdminHandler) MarkDelivered(ctx context.Context, req *OrderRequest) (*StatusReply, error) {
	id, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := h.payments.MarkDelivered(ctx, actorFromContext(ctx), id); err != nil {
		return nil, h.fail(ctx, err)
	}
	return &StatusReply{Success: true, Message: "order marked as delivered"}, nil
}

func (h *AdminHandler) DeleteOrder(ctx context.Context, req *OrderRequest) (*StatusReply, error) {
	id, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := h.orders.DeleteOrder(ctx, actorFromContext(ctx), id); err != nil {
		return nil, h.fail(ctx, err)
	}
	return &StatusReply{Success: true, Message: "order deleted successfully"}, nil
}

func (h *AdminHandler) GetOrderSummary(ctx context.Context, _ *SummaryRequest) (*domain.OrderSummary, error) {
	summary, err := h.orders.GetOrderSummary(ctx, actorFromContext(ctx))
	if err != nil {
		return nil, h.fail(ctx, err)
	}
	return summary, nil
}

// fail logs unexpected errors, which the caller only sees as a generic
// message, and converts err to a status.
func (h *AdminHandler) fail(ctx context.Context, err error) error {
	if service.KindOf(err) == service.KindInternal {
		logger.WithContext(ctx, h.log).Error("admin call failed", zap.Error(err))
	}
	return toStatus(err)
}

func parseOrderID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "invalid order_id: %v", err)
	}
	return id, nil
}

// toStatus maps a service error onto a gRPC status carrying the same
// message the HTTP result would show.
func toStatus(err error) error {
	var code codes.Code
	switch service.KindOf(err) {
	case service.KindValidation, service.KindEmptyCart, service.KindMissingAddress, service.KindMissingPaymentMethod:
		code = codes.InvalidArgument
	case service.KindNotFound:
		code = codes.NotFound
	case service.KindUnauthenticated:
		code = codes.Unauthenticated
	case service.KindForbidden:
		code = codes.PermissionDenied
	case service.KindConflict:
		code = codes.AlreadyExists
	case service.KindOutOfStock, service.KindAlreadyPaid, service.KindNotPaid, service.KindPaymentVerificationFailed:
		code = codes.FailedPrecondition
	case service.KindProvider:
		code = codes.Unavailable
	default:
		code = codes.Internal
	}
	return status.Error(code, service.ResultOf(err, "").Message)
}
