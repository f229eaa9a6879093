package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type RouterConfig struct {
	JWTSecret          []byte
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

type Handlers struct {
	Cart     *CartHandler
	Orders   *OrdersHandler
	Payments *PaymentHandler
	Reviews  *ReviewHandler
	Users    *UserHandler
}

func NewRouter(h Handlers, cfg RouterConfig, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// signature-verified, no caller identity
		r.Post("/webhooks/stripe", h.Payments.StripeWebhook)

		r.Group(func(r chi.Router) {
			r.Use(IdentityMiddleware(cfg.JWTSecret, log))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.Cart.GetCart)
				r.Post("/items", h.Cart.AddItem)
				r.Delete("/items/{productId}", h.Cart.RemoveItem)
				r.Post("/merge", h.Cart.MergeCart)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", h.Orders.CreateOrder)
				r.Get("/mine", h.Orders.ListMyOrders)
				r.Route("/{orderId}", func(r chi.Router) {
					r.Get("/", h.Orders.GetOrder)
					r.Post("/paypal", h.Payments.CreatePayPalOrder)
					r.Post("/paypal/capture", h.Payments.ApprovePayPalOrder)
					r.Post("/stripe/intent", h.Payments.CreateStripePaymentIntent)
					r.Get("/stripe/verify", h.Payments.VerifyStripePayment)
				})
			})

			r.Route("/admin/orders", func(r chi.Router) {
				r.Get("/", h.Orders.ListAllOrders)
				r.Get("/summary", h.Orders.GetOrderSummary)
				r.Delete("/{orderId}", h.Orders.DeleteOrder)
				r.Post("/{orderId}/pay", h.Payments.MarkPaidCOD)
				r.Post("/{orderId}/deliver", h.Payments.MarkDelivered)
			})

			r.Route("/products/{productId}/reviews", func(r chi.Router) {
				r.Get("/", h.Reviews.ListReviews)
				r.Post("/", h.Reviews.UpsertReview)
				r.Get("/mine", h.Reviews.GetMyReview)
			})

			r.Route("/me", func(r chi.Router) {
				r.Put("/address", h.Users.UpdateAddress)
				r.Put("/payment-method", h.Users.UpdatePaymentMethod)
			})
		})
	})

	return otelhttp.NewHandler(r, "shop-http", otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
		return r.Method + " " + r.URL.Path
	}))
}
