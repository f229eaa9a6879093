package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dimamanhura/rozetka/internal/domain"
	"github.com/dimamanhura/rozetka/internal/payment/paypal"
	stripepay "github.com/dimamanhura/rozetka/internal/payment/stripe"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestMarkPaid_OnlyOnce(t *testing.T) {
	env := newTestEnv()
	user, _ := env.newCustomer(domain.PaymentMethodCashOnDelivery)
	p1 := env.newProduct("10.00", 10)
	p2 := env.newProduct("20.00", 10)
	order := env.newOrder(user, 3, p1, p2)

	paid, err := env.payments.MarkPaid(context.Background(), order.ID, nil)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.NotNil(t, paid.PaidAt)
	assert.Equal(t, 7, env.store.stock(p1.ID))
	assert.Equal(t, 7, env.store.stock(p2.ID))

	_, err = env.payments.MarkPaid(context.Background(), order.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Equal(t, 7, env.store.stock(p1.ID))
	assert.Equal(t, 7, env.store.stock(p2.ID))
	assert.Len(t, env.store.outbox(), 1)
}

func TestMarkPaid_NotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.payments.MarkPaid(context.Background(), uuid.New(), nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkPaid_NoFloorOnStock(t *testing.T) {
	env := newTestEnv()
	user, _ := env.newCustomer(domain.PaymentMethodCashOnDelivery)
	p := env.newProduct("10.00", 1)
	order := env.newOrder(user, 3, p)

	_, err := env.payments.MarkPaid(context.Background(), order.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, -2, env.store.stock(p.ID))
}

func TestMarkPaid_WritesReceipt(t *testing.T) {
	env := newTestEnv()
	user, _ := env.newCustomer(domain.PaymentMethodPayPal)
	p := env.newProduct("49.95", 10)
	order := env.newOrder(user, 2, p)

	_, err := env.payments.MarkPaid(context.Background(), order.ID, &domain.PaymentResult{ID: "CAP-1", Status: "COMPLETED"})
	require.NoError(t, err)

	events := env.store.outbox()
	require.Len(t, events, 1)
	assert.Equal(t, order.ID.String(), events[0].AggregateID)
	assert.Equal(t, domain.EventOrderPaid, events[0].EventType)

	var receipt domain.Receipt
	require.NoError(t, json.Unmarshal(events[0].Payload, &receipt))
	assert.Equal(t, order.ID.String(), receipt.OrderID)
	assert.Equal(t, user.Email, receipt.UserEmail)
	assert.Equal(t, "99.90", receipt.ItemsPrice)
	require.Len(t, receipt.Items, 1)
	assert.Equal(t, "49.95", receipt.Items[0].Price)
	assert.False(t, receipt.PaidAt.IsZero())
	assert.Equal(t, []string{p.Slug}, env.pages.invalidated())
}

func TestMarkPaid_FailureLeavesOrderUnpaid(t *testing.T) {
	env := newTestEnv()
	user, _ := env.newCustomer(domain.PaymentMethodPayPal)
	p := env.newProduct("10.00", 10)
	order := env.newOrder(user, 2, p)
	env.store.failOnce("InsertOutboxEvent", errors.New("disk full"))

	_, err := env.payments.MarkPaid(context.Background(), order.ID, nil)
	require.Error(t, err)

	stored, err := env.store.GetOrderByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaid)
	assert.Equal(t, 10, env.store.stock(p.ID))
}

func TestMarkPaid_ConcurrentCallsPayOnce(t *testing.T) {
	env := newTestEnv()
	user, _ := env.newCustomer(domain.PaymentMethodCashOnDelivery)
	p := env.newProduct("10.00", 100)
	order := env.newOrder(user, 4, p)

	var g errgroup.Group
	results := make([]error, 8)
	for i := range results {
		i := i
		g.Go(func() error {
			_, results[i] = env.payments.MarkPaid(context.Background(), order.ID, nil)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var ok, already int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyPaid):
			already++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, already)
	assert.Equal(t, 96, env.store.stock(p.ID))
}

func TestMarkDelivered(t *testing.T) {
	env := newTestEnv()
	user, actor := env.newCustomer(domain.PaymentMethodCashOnDelivery)
	admin := env.newAdmin()
	order := env.newOrder(user, 1, env.newProduct("10.00", 5))

	assert.ErrorIs(t, env.payments.MarkDelivered(context.Background(), actor, order.ID), ErrForbidden)

	err := env.payments.MarkDelivered(context.Background(), admin, order.ID)
	assert.ErrorIs(t, err, ErrNotPaid)
	stored, _ := env.store.GetOrderByID(context.Background(), order.ID)
	assert.False(t, stored.IsDelivered)

	_, err = env.payments.MarkPaid(context.Background(), order.ID, nil)
	require.NoError(t, err)

	first := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	env.payments.now = func() time.Time { return first }
	require.NoError(t, env.payments.MarkDelivered(context.Background(), admin, order.ID))

	env.payments.now = func() time.Time { return first.Add(time.Hour) }
	require.NoError(t, env.payments.MarkDelivered(context.Background(), admin, order.ID))

	stored, _ = env.store.GetOrderByID(context.Background(), order.ID)
	assert.True(t, stored.IsDelivered)
	require.NotNil(t, stored.DeliveredAt)
	assert.Equal(t, first, *stored.DeliveredAt)

	assert.ErrorIs(t, env.payments.MarkDelivered(context.Background(), admin, uuid.New()), ErrNotFound)
}

func TestCreatePayPalOrder_StoresPendingResult(t *testing.T) {
	env := newTestEnv()
	user, actor := env.newCustomer(domain.PaymentMethodPayPal)
	order := env.newOrder(user, 1, env.newProduct("10.00", 5))
	env.paypal.createID = "PP-1"

	id, err := env.payments.CreatePayPalOrder(context.Background(), actor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "PP-1", id)

	stored, _ := env.store.GetOrderByID(context.Background(), order.ID)
	require.NotNil(t, stored.PaymentResult)
	assert.Equal(t, "PP-1", stored.PaymentResult.ID)
	assert.True(t, stored.PaymentResult.IsPending())
	assert.False(t, stored.IsPaid)

	env.paypal.createID = "PP-2"
	_, err = env.payments.CreatePayPalOrder(context.Background(), actor, order.ID)
	require.NoError(t, err)
	stored, _ = env.store.GetOrderByID(context.Background(), order.ID)
	assert.Equal(t, "PP-2", stored.PaymentResult.ID)
}

func TestCreatePayPalOrder_Errors(t *testing.T) {
	env := newTestEnv()
	user, actor := env.newCustomer(domain.PaymentMethodPayPal)
	_, stranger := env.newCustomer(domain.PaymentMethodPayPal)
	order := env.newOrder(user, 1, env.newProduct("10.00", 5))

	_, err := env.payments.CreatePayPalOrder(context.Background(), actor, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.payments.CreatePayPalOrder(context.Background(), stranger, order.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	env.paypal.createErr = errors.New("PAYEE_ACCOUNT_RESTRICTED")
	_, err = env.payments.CreatePayPalOrder(context.Background(), actor, order.ID)
	assert.Equal(t, KindProvider, KindOf(err))
	assert.Equal(t, "PAYEE_ACCOUNT_RESTRICTED", ResultOf(err, "").Message)

	stored, _ := env.store.GetOrderByID(context.Background(), order.ID)
	assert.Nil(t, stored.PaymentResult)
}

func TestApprovePayPalOrder_Success(t *testing.T) {
	env := newTestEnv()
	user, actor := env.newCustomer(domain.PaymentMethodPayPal)
	p := env.newProduct("10.00", 5)
	order := env.newOrder(user, 2, p)
	env.paypal.createID = "PP-1"
	_, err := env.payments.CreatePayPalOrder(context.Background(), actor, order.ID)
	require.NoError(t, err)

	env.paypal.capture = &paypal.Capture{ID: "PP-1", Status: "COMPLETED", PayerEmail: "buyer@example.com", Amount: decimal.RequireFromString("33.00")}
	paid, err := env.payments.ApprovePayPalOrder(context.Background(), actor, order.ID, "PP-1")
	require.NoError(t, err)

	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaymentResult)
	assert.Equal(t, "buyer@example.com", paid.PaymentResult.EmailAddress)
	assert.Equal(t, "33.00", paid.PaymentResult.PricePaid.StringFixed(2))
	assert.Equal(t, 3, env.store.stock(p.ID))
}

func TestApprovePayPalOrder_VerificationFailures(t *testing.T) {
	tests := []struct {
		name    string
		capture *paypal.Capture
	}{
		{name: "capture id differs from pending id", capture: &paypal.Capture{ID: "PP-forged", Status: "COMPLETED"}},
		{name: "capture not completed", capture: &paypal.Capture{ID: "PP-1", Status: "PENDING"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			user, actor := env.newCustomer(domain.PaymentMethodPayPal)
			p := env.newProduct("10.00", 5)
			order := env.newOrder(user, 1, p)
			env.paypal.createID = "PP-1"
			_, err := env.payments.CreatePayPalOrder(context.Background(), actor, order.ID)
			require.NoError(t, err)

			env.paypal.capture = tt.capture
			_, err = env.payments.ApprovePayPalOrder(context.Background(), actor, order.ID, tt.capture.ID)
			assert.ErrorIs(t, err, ErrPaymentVerificationFailed)

			stored, _ := env.store.GetOrderByID(context.Background(), order.ID)
			assert.False(t, stored.IsPaid)
			assert.Equal(t, 5, env.store.stock(p.ID))
		})
	}
}

func TestApprovePayPalOrder_WithoutPendingResult(t *testing.T) {
	env := newTestEnv()
	user, actor := env.newCustomer(domain.PaymentMethodPayPal)
	order := env.newOrder(user, 1, env.newProduct("10.00", 5))
	env.paypal.capture = &paypal.Capture{ID: "PP-1", Status: "COMPLETED"}

	_, err := env.payments.ApprovePayPalOrder(context.Background(), actor, order.ID, "PP-1")
	assert.ErrorIs(t, err, ErrPaymentVerificationFailed)
}

func TestApprovePayPalOrder_AlreadyPaid(t *testing.T) {
	env := newTestEnv()
	user, actor := env.newCustomer(domain.PaymentMethodPayPal)
	order := env.newOrder(user, 1, env.newProduct("10.00", 5))
	_, err := env.payments.MarkPaid(context.Background(), order.ID, nil)
	require.NoError(t, err)

	_, err = env.payments.ApprovePayPalOrder(context.Background(), actor, order.ID, "PP-1")
	assert.ErrorIs(t, err, ErrAlreadyPaid)
	assert.Empty(t, env.paypal.captured)
}

func TestCreateStripePaymentIntent(t *testing.T) {
	env := newTestEnv()
	user, actor := env.newCustomer(domain.PaymentMethodStripe)
	order := env.newOrder(user, 1, env.newProduct("49.95", 5))

	secret, err := env.payments.CreateStripePaymentIntent(context.Background(), actor, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_1_secret", secret)
	assert.Equal(t, []int64{6744}, env.stripe.created)
}

func TestCreateStripePaymentIntent_WrongMethod(t *testing.T) {
	env := newTestEnv()
	user, actor := env.newCustomer(domain.PaymentMethodPayPal)
	order := env.newOrder(user, 1, env.newProduct("10.00", 5))

	_, err := env.payments.CreateStripePaymentIntent(context.Background(), actor, order.ID)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Empty(t, env.stripe.created)
}

func TestVerifyStripePayment(t *testing.T) {
	env := newTestEnv()
	user, actor := env.newCustomer(domain.PaymentMethodStripe)
	order := env.newOrder(user, 1, env.newProduct("10.00", 5))
	other := env.newOrder(user, 1, env.newProduct("10.00", 5))

	env.stripe.intents["pi_ok"] = &stripepay.Intent{ID: "pi_ok", Status: stripepay.StatusSucceeded, OrderID: order.ID.String()}
	env.stripe.intents["pi_other"] = &stripepay.Intent{ID: "pi_other", Status: stripepay.StatusSucceeded, OrderID: other.ID.String()}
	env.stripe.intents["pi_pending"] = &stripepay.Intent{ID: "pi_pending", Status: "processing", OrderID: order.ID.String()}

	got, err := env.payments.VerifyStripePayment(context.Background(), actor, order.ID, "pi_ok")
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.False(t, got.IsPaid, "landing page does not mark the order paid")

	_, err = env.payments.VerifyStripePayment(context.Background(), actor, order.ID, "pi_other")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.payments.VerifyStripePayment(context.Background(), actor, order.ID, "pi_pending")
	assert.ErrorIs(t, err, ErrPaymentVerificationFailed)
	assert.Equal(t, "/order/"+order.ID.String(), ResultOf(err, "").RedirectTo)

	_, err = env.payments.VerifyStripePayment(context.Background(), actor, order.ID, "pi_missing")
	assert.Equal(t, KindProvider, KindOf(err))
}

func TestHandleStripeEvent_ChargeSucceeded(t *testing.T) {
	env := newTestEnv()
	user, _ := env.newCustomer(domain.PaymentMethodStripe)
	p := env.newProduct("10.00", 5)
	order := env.newOrder(user, 2, p)
	env.stripe.event = &stripepay.Event{
		ID:   "evt_1",
		Type: stripepay.EventChargeSucceeded,
		Charge: &stripepay.Charge{
			ID:          "ch_1",
			OrderID:     order.ID.String(),
			Email:       "buyer@example.com",
			AmountCents: 3300,
		},
	}

	require.NoError(t, env.payments.HandleStripeEvent(context.Background(), []byte("{}"), "sig"))

	stored, _ := env.store.GetOrderByID(context.Background(), order.ID)
	assert.True(t, stored.IsPaid)
	require.NotNil(t, stored.PaymentResult)
	assert.Equal(t, "ch_1", stored.PaymentResult.ID)
	assert.Equal(t, "COMPLETED", stored.PaymentResult.Status)
	assert.Equal(t, "33.00", stored.PaymentResult.PricePaid.StringFixed(2))
	assert.Equal(t, 3, env.store.stock(p.ID))

	require.NoError(t, env.payments.HandleStripeEvent(context.Background(), []byte("{}"), "sig"), "redelivery is acknowledged")
	assert.Equal(t, 3, env.store.stock(p.ID))
}

func TestHandleStripeEvent_Rejections(t *testing.T) {
	env := newTestEnv()

	env.stripe.parseErr = stripepay.ErrInvalidSignature
	err := env.payments.HandleStripeEvent(context.Background(), []byte("{}"), "bad")
	assert.ErrorIs(t, err, ErrPaymentVerificationFailed)

	env.stripe.parseErr = nil
	env.stripe.event = &stripepay.Event{ID: "evt_2", Type: "payment_intent.created"}
	assert.NoError(t, env.payments.HandleStripeEvent(context.Background(), []byte("{}"), "sig"))

	env.stripe.event = &stripepay.Event{ID: "evt_3", Type: stripepay.EventChargeSucceeded, Charge: &stripepay.Charge{ID: "ch_3", OrderID: "not-a-uuid"}}
	err = env.payments.HandleStripeEvent(context.Background(), []byte("{}"), "sig")
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestMarkPaidCOD(t *testing.T) {
	env := newTestEnv()
	user, actor := env.newCustomer(domain.PaymentMethodCashOnDelivery)
	admin := env.newAdmin()
	order := env.newOrder(user, 1, env.newProduct("10.00", 5))

	_, err := env.payments.MarkPaidCOD(context.Background(), actor, order.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	paid, err := env.payments.MarkPaidCOD(context.Background(), admin, order.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.Nil(t, paid.PaymentResult)

	_, err = env.payments.MarkPaidCOD(context.Background(), admin, order.ID)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestMarkPaidCOD_WrongMethod(t *testing.T) {
	env := newTestEnv()
	user, _ := env.newCustomer(domain.PaymentMethodPayPal)
	order := env.newOrder(user, 1, env.newProduct("10.00", 5))

	_, err := env.payments.MarkPaidCOD(context.Background(), env.newAdmin(), order.ID)
	assert.Equal(t, KindValidation, KindOf(err))
}
