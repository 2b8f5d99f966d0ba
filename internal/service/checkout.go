package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/port"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// MinSessionTTL is the shortest checkout session lifetime the gateway accepts.
const MinSessionTTL = 30 * time.Minute

type CheckoutConfig struct {
	FeeRate    decimal.Decimal
	SessionTTL time.Duration
	Retry      RetryPolicy
}

func (c CheckoutConfig) Validate() error {
	if err := domain.ValidateFeeRate(c.FeeRate); err != nil {
		return fmt.Errorf("feeRate: %w", err)
	}

	if c.SessionTTL < MinSessionTTL {
		return fmt.Errorf("sessionTTL[%s] is shorter than %s", c.SessionTTL, MinSessionTTL)
	}

	return nil
}

type CheckoutService struct {
	listings port.ListingRepository
	accounts port.PayoutAccountRepository
	orders   port.OrderRepository
	gateway  port.PaymentGateway
	cfg      CheckoutConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewCheckout(
	listings port.ListingRepository,
	accounts port.PayoutAccountRepository,
	orders port.OrderRepository,
	gateway port.PaymentGateway,
	cfg CheckoutConfig,
	logger *slog.Logger,
) (*CheckoutService, error) {
	if listings == nil || accounts == nil || orders == nil || gateway == nil {
		return nil, errors.New("dependencies must not be nil")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cfg.Validate: %w", err)
	}

	return &CheckoutService{
		listings: listings,
		accounts: accounts,
		orders:   orders,
		gateway:  gateway,
		cfg:      cfg,
		logger:   loggerOrDefault(logger),
		now:      time.Now,
	}, nil
}

// CreateCheckout opens one gateway checkout session for the whole cart and
// records a pending order per listing. Orders are persisted only after the
// session exists; if they cannot be persisted the session is expired so the
// buyer is never charged for orders the ledger does not know about.
func (s *CheckoutService) CreateCheckout(ctx context.Context, cart domain.Cart, origin string) (_ domain.CheckoutSession, err error) {
	ctx, done := trackOperation(ctx, "CheckoutService.CreateCheckout",
		attribute.String("buyer_id", cart.BuyerID),
		attribute.Int("items", len(cart.ListingIDs)))
	defer func() { done(err) }()

	var cs domain.CheckoutSession

	if err := cart.Validate(); err != nil {
		return cs, fmt.Errorf("cart.Validate: %w", err)
	}

	origin, err = validateOrigin(origin)
	if err != nil {
		return cs, fmt.Errorf("validateOrigin: %w", err)
	}

	listings, err := s.loadListings(ctx, cart.ListingIDs)
	if err != nil {
		return cs, fmt.Errorf("loadListings: %w", err)
	}

	if err := s.ensurePayable(ctx, listings); err != nil {
		return cs, fmt.Errorf("ensurePayable: %w", err)
	}

	transferGroup := "order_" + uuid.NewString()

	noteIDs := lo.Map(listings, func(l domain.Listing, _ int) string {
		return l.ID.String()
	})

	fees := make([]int64, len(listings))
	var totalFee int64
	for i, l := range listings {
		fees[i], _ = domain.SplitFee(l.Price.AmountMinor, s.cfg.FeeRate)
		totalFee += fees[i]
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, domain.CheckoutSessionRequest{
		LineItems: lo.Map(listings, func(l domain.Listing, _ int) domain.LineItem {
			return domain.LineItem{
				ListingID:  l.ID,
				Name:       l.Title,
				UnitAmount: l.Price,
				Quantity:   1,
			}
		}),
		TransferGroup: transferGroup,
		BuyerID:       cart.BuyerID,
		Metadata: map[string]string{
			"buyer_id":           cart.BuyerID,
			"note_ids":           strings.Join(noteIDs, ","),
			"platform_fee_minor": strconv.FormatInt(totalFee, 10),
		},
		SuccessURL:     origin + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:      origin + "/cart",
		ExpiresAt:      s.now().Add(s.cfg.SessionTTL),
		IdempotencyKey: transferGroup,
	})
	if err != nil {
		return cs, fmt.Errorf("gateway.CreateCheckoutSession: %w", err)
	}

	orders := lo.Map(listings, func(l domain.Listing, i int) domain.Order {
		return domain.Order{
			NoteID:            l.ID,
			BuyerID:           cart.BuyerID,
			SellerID:          l.SellerID,
			CheckoutSessionID: session.ID,
			TransferGroup:     transferGroup,
			Price:             l.Price,
			PlatformFeeMinor:  fees[i],
			Status:            domain.OrderStatusPending,
		}
	})

	err = s.cfg.Retry.retry(ctx, s.logger, "orders.InsertOrders", func() error {
		_, err := s.orders.InsertOrders(ctx, orders)
		return err
	})
	if err != nil {
		s.expireOrphanSession(ctx, session, err)
		return cs, fmt.Errorf("orders.InsertOrders: %w: %w", domain.ErrPersistence, err)
	}

	s.logger.InfoContext(ctx, "checkout created",
		"checkout_session_id", session.ID,
		"transfer_group", transferGroup,
		"buyer_id", cart.BuyerID,
		"orders", len(orders))

	return session, nil
}

// loadListings returns the listings in cart order, all in one currency.
func (s *CheckoutService) loadListings(ctx context.Context, ids []uuid.UUID) ([]domain.Listing, error) {
	found, err := s.listings.GetListings(ctx, ids)
	if err != nil {
		return nil, storeError("listings.GetListings", err)
	}

	byID := lo.KeyBy(found, func(l domain.Listing) uuid.UUID {
		return l.ID
	})

	listings := make([]domain.Listing, 0, len(ids))
	for _, id := range ids {
		l, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("listing[%s] %w", id, domain.ErrNotFound)
		}
		listings = append(listings, l)
	}

	first := listings[0].Price.Currency
	for _, l := range listings[1:] {
		if l.Price.Currency != first {
			return nil, fmt.Errorf("%w: cart mixes currencies %s and %s", domain.ErrValidation, first, l.Price.Currency)
		}
	}

	return listings, nil
}

// ensurePayable fails unless every seller in the cart can receive transfers.
func (s *CheckoutService) ensurePayable(ctx context.Context, listings []domain.Listing) error {
	sellerIDs := lo.Uniq(lo.Map(listings, func(l domain.Listing, _ int) string {
		return l.SellerID
	}))

	accounts, err := s.accounts.GetBySellerIDs(ctx, sellerIDs)
	if err != nil {
		return storeError("accounts.GetBySellerIDs", err)
	}

	payable := lo.SliceToMap(lo.Filter(accounts, func(a domain.PayoutAccount, _ int) bool {
		return a.Payable()
	}), func(a domain.PayoutAccount) (string, struct{}) {
		return a.SellerID, struct{}{}
	})

	notPayable := lo.Filter(sellerIDs, func(id string, _ int) bool {
		_, ok := payable[id]
		return !ok
	})
	if len(notPayable) > 0 {
		return fmt.Errorf("sellers[%s]: %w", strings.Join(notPayable, ","), domain.ErrSellerNotPayable)
	}

	return nil
}

// expireOrphanSession closes a session whose orders were never recorded.
// It runs detached from the request so a disconnected buyer cannot leave the session open.
func (s *CheckoutService) expireOrphanSession(ctx context.Context, session domain.CheckoutSession, cause error) {
	ctx = context.WithoutCancel(ctx)

	err := s.cfg.Retry.retry(ctx, s.logger, "gateway.ExpireCheckoutSession", func() error {
		err := s.gateway.ExpireCheckoutSession(ctx, session.ID)
		if err != nil && !domain.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "checkout session left open without orders, reconcile manually",
			"checkout_session_id", session.ID,
			"expires_at", session.ExpiresAt,
			"cause", cause,
			"err", err)
		return
	}

	s.logger.WarnContext(ctx, "checkout session expired after orders could not be persisted",
		"checkout_session_id", session.ID,
		"cause", cause)
}
