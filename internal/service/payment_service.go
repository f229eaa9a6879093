package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dimamanhura/rozetka/internal/cache"
	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/repository"
	"github.com/dimamanhura/rozetka/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type PaymentService struct {
	store      repository.Store
	paypal     PayPalClient
	stripe     StripeClient
	pages      cache.PageInvalidator
	confirmers map[domain.PaymentMethod]Confirmer
	log        *zap.Logger
	timeout    time.Duration
	now        func() time.Time
}

func NewPaymentService(
	store repository.Store,
	pp PayPalClient,
	sc StripeClient,
	pages cache.PageInvalidator,
	log *zap.Logger,
	providerTimeout time.Duration,
) *PaymentService {
	if providerTimeout <= 0 {
		providerTimeout = 10 * time.Second
	}
	return &PaymentService{
		store:  store,
		paypal: pp,
		stripe: sc,
		pages:  pages,
		confirmers: map[domain.PaymentMethod]Confirmer{
			domain.PaymentMethodPayPal:         payPalConfirmer{client: pp},
			domain.PaymentMethodStripe:         stripeConfirmer{client: sc},
			domain.PaymentMethodCashOnDelivery: cashConfirmer{},
		},
		log:     log,
		timeout: providerTimeout,
		now:     time.Now,
	}
}

// MarkPaid is the single unpaid to paid transition shared by every payment
// method. Stock for each item is decremented in the same transaction as the
// paid flag, so a second call fails with ErrAlreadyPaid and changes nothing.
func (s *PaymentService) MarkPaid(ctx context.Context, orderID uuid.UUID, result *domain.PaymentResult) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.MarkPaid", trace.WithAttributes(attribute.String("order.id", orderID.String())))
	defer span.End()

	var order *domain.Order
	err := s.store.WithTransaction(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return NotFound("order")
		}
		if err != nil {
			return err
		}
		if o.IsPaid {
			return ErrAlreadyPaid
		}

		for _, it := range o.Items {
			if err := tx.DecrementStock(ctx, it.ProductID, it.Qty); err != nil {
				return fmt.Errorf("decrement stock for %s: %w", it.ProductID, err)
			}
		}

		paidAt := s.now().UTC()
		err = tx.MarkOrderPaid(ctx, o.ID, paidAt, result)
		if errors.Is(err, repository.ErrOrderAlreadyPaid) {
			return ErrAlreadyPaid
		}
		if err != nil {
			return err
		}

		o.IsPaid = true
		o.PaidAt = &paidAt
		o.PaymentResult = result

		payload, err := json.Marshal(domain.NewReceipt(o))
		if err != nil {
			return fmt.Errorf("marshal receipt: %w", err)
		}
		if err := tx.InsertOutboxEvent(ctx, o.ID.String(), domain.EventOrderPaid, payload); err != nil {
			return err
		}

		order = o
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "mark paid failed")
		return nil, err
	}

	logger.WithContext(ctx, s.log).Info("order paid",
		zap.Stringer("order_id", order.ID),
		zap.String("payment_method", order.PaymentMethod.String()),
		zap.String("total", order.TotalPrice.StringFixed(2)),
	)
	for _, it := range order.Items {
		s.invalidatePage(ctx, it.Slug)
	}
	return order, nil
}

// CreatePayPalOrder opens a PayPal order for the order total and stores its
// id as a pending payment result. Calling it again replaces the pending id.
func (s *PaymentService) CreatePayPalOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (string, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.CreatePayPalOrder")
	defer span.End()

	order, err := s.payableOrder(ctx, actor, orderID, domain.PaymentMethodPayPal)
	if err != nil {
		return "", err
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	providerID, err := s.paypal.CreateOrder(pctx, order.TotalPrice)
	cancel()
	if err != nil {
		span.RecordError(err)
		return "", Provider(err)
	}

	err = s.store.WithTransaction(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return NotFound("order")
		}
		if err != nil {
			return err
		}
		if o.IsPaid {
			return ErrAlreadyPaid
		}
		return tx.SetPaymentResult(ctx, orderID, &domain.PaymentResult{ID: providerID, PricePaid: decimal.Zero})
	})
	if err != nil {
		return "", err
	}
	return providerID, nil
}

// ApprovePayPalOrder captures the buyer-approved PayPal order and marks the
// order paid once the capture is verified.
func (s *PaymentService) ApprovePayPalOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID, providerOrderID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.ApprovePayPalOrder")
	defer span.End()

	order, err := s.payableOrder(ctx, actor, orderID, domain.PaymentMethodPayPal)
	if err != nil {
		return nil, err
	}

	result, err := s.confirm(ctx, order, providerOrderID)
	if err != nil {
		span.RecordError(err)
		logger.WithContext(ctx, s.log).Warn("paypal approval rejected", zap.Stringer("order_id", orderID), zap.Error(err))
		return nil, err
	}
	return s.MarkPaid(ctx, order.ID, result)
}

// CreateStripePaymentIntent returns the client secret of a new intent for
// the order total in cents.
func (s *PaymentService) CreateStripePaymentIntent(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (string, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.CreateStripePaymentIntent")
	defer span.End()

	order, err := s.payableOrder(ctx, actor, orderID, domain.PaymentMethodStripe)
	if err != nil {
		return "", err
	}

	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	intent, err := s.stripe.CreateIntent(pctx, order.ID.String(), order.AmountInCents())
	if err != nil {
		span.RecordError(err)
		return "", Provider(err)
	}
	return intent.ClientSecret, nil
}

// VerifyStripePayment backs the success landing page. It only checks the
// intent; the paid transition arrives through the charge.succeeded webhook.
func (s *PaymentService) VerifyStripePayment(ctx context.Context, actor domain.Actor, orderID uuid.UUID, intentID string) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.VerifyStripePayment")
	defer span.End()

	order, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.confirm(ctx, order, intentID); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return order, nil
}

// HandleStripeEvent verifies and applies a Stripe webhook. Redelivery of an
// already applied charge is acknowledged.
func (s *PaymentService) HandleStripeEvent(ctx context.Context, payload []byte, signature string) error {
	ctx, span := tracer.Start(ctx, "PaymentService.HandleStripeEvent")
	defer span.End()

	ev, err := s.stripe.ParseEvent(payload, signature)
	if err != nil {
		span.RecordError(err)
		return &Error{Kind: KindPaymentVerificationFailed, Message: "invalid webhook signature", Err: err}
	}
	span.SetAttributes(attribute.String("stripe.event_type", ev.Type))
	if ev.Charge == nil {
		return nil
	}

	orderID, err := uuid.Parse(ev.Charge.OrderID)
	if err != nil {
		return Validation(map[string]string{"metadata.orderId": "is not a valid order id"})
	}

	_, err = s.MarkPaid(ctx, orderID, &domain.PaymentResult{
		ID:           ev.Charge.ID,
		Status:       "COMPLETED",
		EmailAddress: ev.Charge.Email,
		PricePaid:    decimal.New(ev.Charge.AmountCents, -2),
	})
	if errors.Is(err, ErrAlreadyPaid) {
		logger.WithContext(ctx, s.log).Info("stripe charge already applied", zap.String("event_id", ev.ID), zap.Stringer("order_id", orderID))
		return nil
	}
	return err
}

// MarkPaidCOD records cash received on delivery. Admin only.
func (s *PaymentService) MarkPaidCOD(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "PaymentService.MarkPaidCOD")
	defer span.End()

	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	order, err := s.payableOrder(ctx, actor, orderID, domain.PaymentMethodCashOnDelivery)
	if err != nil {
		return nil, err
	}
	result, err := s.confirm(ctx, order, "")
	if err != nil {
		return nil, err
	}
	return s.MarkPaid(ctx, order.ID, result)
}

// MarkDelivered flags a paid order as delivered. Admin only. Delivering an
// already delivered order keeps the first delivery time.
func (s *PaymentService) MarkDelivered(ctx context.Context, actor domain.Actor, orderID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "PaymentService.MarkDelivered")
	defer span.End()

	if !actor.IsAdmin() {
		return ErrForbidden
	}

	return s.store.WithTransaction(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if errors.Is(err, repository.ErrOrderNotFound) {
			return NotFound("order")
		}
		if err != nil {
			return err
		}
		if !o.IsPaid {
			return ErrNotPaid
		}
		if o.IsDelivered {
			return nil
		}
		err = tx.MarkOrderDelivered(ctx, orderID, s.now().UTC())
		if errors.Is(err, repository.ErrOrderNotPaid) {
			return ErrNotPaid
		}
		return err
	})
}

func (s *PaymentService) confirm(ctx context.Context, order *domain.Order, ref string) (*domain.PaymentResult, error) {
	confirmer, ok := s.confirmers[order.PaymentMethod]
	if !ok {
		return nil, Validation(map[string]string{"paymentMethod": "is not supported"})
	}
	pctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return confirmer.Confirm(pctx, order, ref)
}

func (s *PaymentService) visibleOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.store.GetOrderByID(ctx, orderID)
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

// payableOrder loads an unpaid order of the given method that the actor may pay.
func (s *PaymentService) payableOrder(ctx context.Context, actor domain.Actor, orderID uuid.UUID, method domain.PaymentMethod) (*domain.Order, error) {
	order, err := s.visibleOrder(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != method {
		return nil, Validation(map[string]string{"paymentMethod": "order is not paid by " + method.String()})
	}
	if order.IsPaid {
		return nil, ErrAlreadyPaid
	}
	return order, nil
}

func (s *PaymentService) invalidatePage(ctx context.Context, slug string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.pages.InvalidateProductPage(ctx, slug); err != nil {
		logger.WithContext(ctx, s.log).Warn("product page invalidate failed", zap.String("slug", slug), zap.Error(err))
	}
}
