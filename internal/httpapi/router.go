// Package httpapi exposes checkout, payout onboarding and the gateway webhook over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/service"
)

type checkoutCreator interface {
	CreateCheckout(ctx context.Context, cart domain.Cart, origin string) (domain.CheckoutSession, error)
}

type eventHandler interface {
	HandleEvent(ctx context.Context, ev domain.GatewayEvent) (service.SettlementResult, error)
}

type eventParser interface {
	ParseEvent(payload []byte, signature string) (domain.GatewayEvent, error)
}

type accountManager interface {
	BeginOnboarding(ctx context.Context, sellerID, email string) (domain.PayoutAccount, error)
	CreateOnboardingLink(ctx context.Context, gatewayAccountID, origin string) (string, error)
	CheckStatus(ctx context.Context, gatewayAccountID string) (domain.AccountStatus, error)
}

type orderReader interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
	SearchOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)
	CheckoutStatus(ctx context.Context, checkoutSessionID string) (service.CheckoutStatus, error)
}

var (
	_ checkoutCreator = (*service.CheckoutService)(nil)
	_ orderReader     = (*service.OrderQueryService)(nil)
	_ eventHandler    = (*service.SettlementService)(nil)
	_ accountManager  = (*service.PayoutAccountService)(nil)
)

type Deps struct {
	Checkout    checkoutCreator
	Settlement  eventHandler
	Events      eventParser
	Accounts    accountManager
	Orders      orderReader
	RateLimiter *RateLimiter
	Logger      *slog.Logger
}

type handler struct {
	checkout   checkoutCreator
	settlement eventHandler
	events     eventParser
	accounts   accountManager
	orders     orderReader
	logger     *slog.Logger
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handler{
		checkout:   deps.Checkout,
		settlement: deps.Settlement,
		events:     deps.Events,
		accounts:   deps.Accounts,
		orders:     deps.Orders,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.healthz)

	r.Route("/v1", func(r chi.Router) {
		// the gateway retries webhooks on its own schedule, they are never rate limited
		r.Post("/webhooks/stripe", h.stripeWebhook)

		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.Middleware)
			}

			r.Post("/checkout", h.createCheckout)
			r.Get("/checkout/{sessionID}", h.checkoutStatus)

			r.Get("/orders", h.searchOrders)
			r.Get("/orders/{orderID}", h.getOrder)

			r.Route("/payout-accounts", func(r chi.Router) {
				r.Post("/", h.beginOnboarding)
				r.Post("/{accountID}/links", h.createOnboardingLink)
				r.Get("/{accountID}/status", h.checkStatus)
			})
		})
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.InfoContext(r.Context(), "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
