package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/messaging"
	"github.com/nikolayk812/notemarket/internal/port"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

type accountFlagsApplier interface {
	ApplyAccountFlags(ctx context.Context, gatewayAccountID string, flags domain.AccountFlags) (domain.AccountStatus, error)
}

type SettlementResult struct {
	EventType         domain.GatewayEventType
	CheckoutSessionID string
	// AlreadySettled is set when a redelivered event found nothing left to do.
	AlreadySettled   bool
	Ignored          bool
	OrdersCompleted  int
	OrdersFailed     int64
	PayoutsSucceeded int
	PayoutsFailed    int
	AccountStatus    domain.AccountStatus
}

type RetryOptions struct {
	// GracePeriod protects payouts an in-flight settlement is still working on.
	GracePeriod time.Duration
	MaxAttempts int
	Limit       int
}

func DefaultRetryOptions() RetryOptions {
	return RetryOptions{
		GracePeriod: 10 * time.Minute,
		MaxAttempts: 10,
		Limit:       100,
	}
}

type RetryReport struct {
	Attempted int
	Succeeded int
	Failures  []domain.PayoutFailure
}

type SettlementService struct {
	orders    port.OrderRepository
	payouts   port.PayoutRepository
	accounts  port.PayoutAccountRepository
	flags     accountFlagsApplier
	gateway   port.PaymentGateway
	publisher port.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewSettlement(
	orders port.OrderRepository,
	payouts port.PayoutRepository,
	accounts port.PayoutAccountRepository,
	flags accountFlagsApplier,
	gateway port.PaymentGateway,
	publisher port.EventPublisher,
	logger *slog.Logger,
) (*SettlementService, error) {
	if orders == nil || payouts == nil || accounts == nil || flags == nil || gateway == nil || publisher == nil {
		return nil, errors.New("dependencies must not be nil")
	}

	return &SettlementService{
		orders:    orders,
		payouts:   payouts,
		accounts:  accounts,
		flags:     flags,
		gateway:   gateway,
		publisher: publisher,
		logger:    loggerOrDefault(logger),
		now:       time.Now,
	}, nil
}

// HandleEvent applies one verified gateway event. Every branch is idempotent,
// so redelivery of the same event is always safe.
func (s *SettlementService) HandleEvent(ctx context.Context, ev domain.GatewayEvent) (_ SettlementResult, err error) {
	ctx, done := trackOperation(ctx, "SettlementService.HandleEvent",
		attribute.String("event_id", ev.ID),
		attribute.String("event_type", ev.RawType))
	defer func() { done(err) }()

	switch ev.Type {
	case domain.EventSessionCompleted:
		return s.settle(ctx, ev)
	case domain.EventSessionExpired:
		return s.expire(ctx, ev)
	case domain.EventAccountUpdated:
		return s.updateAccount(ctx, ev)
	default:
		s.logger.DebugContext(ctx, "event ignored", "event_id", ev.ID, "event_type", ev.RawType)
		return SettlementResult{EventType: ev.Type, Ignored: true}, nil
	}
}

func (s *SettlementService) settle(ctx context.Context, ev domain.GatewayEvent) (SettlementResult, error) {
	result := SettlementResult{EventType: ev.Type, CheckoutSessionID: ev.CheckoutSessionID}

	if ev.CheckoutSessionID == "" {
		return result, fmt.Errorf("%w: checkoutSessionID is empty", domain.ErrValidation)
	}

	group, err := s.orders.GetSettlementGroup(ctx, ev.CheckoutSessionID)
	if err != nil {
		return result, storeError("orders.GetSettlementGroup", err)
	}

	if len(group.Orders) == 0 {
		return result, fmt.Errorf("session[%s]: %w", ev.CheckoutSessionID, domain.ErrOrdersNotVisible)
	}

	if len(group.Pending()) == 0 {
		result.AlreadySettled = true
		return result, nil
	}

	transferGroup := s.resolveTransferGroup(ctx, ev, group)

	payouts, err := s.orders.CompleteGroup(ctx, ev.CheckoutSessionID, transferGroup)
	if err != nil {
		return result, storeError("orders.CompleteGroup", err)
	}

	// a concurrent delivery completed the group first
	if len(payouts) == 0 {
		result.AlreadySettled = true
		return result, nil
	}

	result.OrdersCompleted = len(payouts)

	// the group is committed as completed; a disconnecting caller must not strand its payouts
	ctx = context.WithoutCancel(ctx)

	failures := s.payOut(ctx, payouts)
	result.PayoutsFailed = len(failures)
	result.PayoutsSucceeded = len(payouts) - len(failures)

	s.publish(ctx, messaging.TopicSettlementCompleted, ev.CheckoutSessionID, messaging.SettlementCompleted{
		CheckoutSessionID: ev.CheckoutSessionID,
		TransferGroup:     transferGroup,
		OrderIDs: lo.Map(payouts, func(p domain.Payout, _ int) string {
			return p.OrderID.String()
		}),
		FailedPayouts: len(failures),
		CompletedAt:   s.now().UTC(),
	})

	s.logger.InfoContext(ctx, "settlement completed",
		"checkout_session_id", ev.CheckoutSessionID,
		"transfer_group", transferGroup,
		"orders", result.OrdersCompleted,
		"payouts_failed", result.PayoutsFailed)

	if len(failures) > 0 {
		return result, &domain.PartialSettlementFailure{
			CheckoutSessionID: ev.CheckoutSessionID,
			Failures:          failures,
		}
	}

	return result, nil
}

// resolveTransferGroup prefers the event, then the payment intent, then the stored orders.
func (s *SettlementService) resolveTransferGroup(ctx context.Context, ev domain.GatewayEvent, group domain.SettlementGroup) string {
	if ev.TransferGroup != "" {
		return ev.TransferGroup
	}

	stored := group.TransferGroup()

	if ev.PaymentIntentID == "" {
		return stored
	}

	pi, err := s.gateway.RetrievePaymentIntent(ctx, ev.PaymentIntentID)
	if err != nil {
		s.logger.WarnContext(ctx, "payment intent lookup failed, using stored transfer group",
			"checkout_session_id", ev.CheckoutSessionID,
			"payment_intent_id", ev.PaymentIntentID,
			"err", err)
		return stored
	}

	if pi.TransferGroup == "" {
		return stored
	}

	if stored != "" && pi.TransferGroup != stored {
		s.logger.WarnContext(ctx, "transfer group differs from stored orders",
			"checkout_session_id", ev.CheckoutSessionID,
			"payment_intent", pi.TransferGroup,
			"stored", stored)
	}

	return pi.TransferGroup
}

func (s *SettlementService) expire(ctx context.Context, ev domain.GatewayEvent) (SettlementResult, error) {
	result := SettlementResult{EventType: ev.Type, CheckoutSessionID: ev.CheckoutSessionID}

	if ev.CheckoutSessionID == "" {
		return result, fmt.Errorf("%w: checkoutSessionID is empty", domain.ErrValidation)
	}

	n, err := s.orders.FailGroup(ctx, ev.CheckoutSessionID)
	if err != nil {
		return result, storeError("orders.FailGroup", err)
	}

	result.OrdersFailed = n
	if n == 0 {
		result.AlreadySettled = true
		return result, nil
	}

	s.publish(ctx, messaging.TopicSettlementFailed, ev.CheckoutSessionID, messaging.SettlementFailed{
		CheckoutSessionID: ev.CheckoutSessionID,
		FailedOrders:      n,
		FailedAt:          s.now().UTC(),
	})

	s.logger.InfoContext(ctx, "checkout session expired", "checkout_session_id", ev.CheckoutSessionID, "orders", n)

	return result, nil
}

func (s *SettlementService) updateAccount(ctx context.Context, ev domain.GatewayEvent) (SettlementResult, error) {
	result := SettlementResult{EventType: ev.Type}

	status, err := s.flags.ApplyAccountFlags(ctx, ev.GatewayAccountID, ev.AccountFlags)
	if errors.Is(err, domain.ErrNotFound) {
		// accounts created outside this platform are not ours to track
		s.logger.WarnContext(ctx, "account update for unknown account", "gateway_account_id", ev.GatewayAccountID)
		result.Ignored = true
		return result, nil
	}
	if err != nil {
		return result, fmt.Errorf("flags.ApplyAccountFlags: %w", err)
	}

	result.AccountStatus = status

	return result, nil
}

// RetryPayouts re-attempts failed payouts and pending payouts older than the grace period.
// The idempotency key only moves on after a definite rejection, so a transfer
// that went through unrecorded is returned by the gateway instead of being created twice.
func (s *SettlementService) RetryPayouts(ctx context.Context, opts RetryOptions) (_ RetryReport, err error) {
	ctx, done := trackOperation(ctx, "SettlementService.RetryPayouts")
	defer func() { done(err) }()

	var report RetryReport

	if opts.MaxAttempts <= 0 || opts.Limit <= 0 || opts.GracePeriod < 0 {
		return report, fmt.Errorf("%w: invalid retry options %+v", domain.ErrValidation, opts)
	}

	payouts, err := s.payouts.ListRetryable(ctx, s.now().Add(-opts.GracePeriod), opts.MaxAttempts, opts.Limit)
	if err != nil {
		return report, storeError("payouts.ListRetryable", err)
	}

	report.Attempted = len(payouts)
	report.Failures = s.payOut(ctx, payouts)
	report.Succeeded = report.Attempted - len(report.Failures)

	s.logger.InfoContext(ctx, "payout retry finished",
		"attempted", report.Attempted,
		"succeeded", report.Succeeded,
		"failed", len(report.Failures))

	return report, nil
}

// payOut transfers each payout to its seller. A failing payout is recorded
// and never stops the others.
func (s *SettlementService) payOut(ctx context.Context, payouts []domain.Payout) []domain.PayoutFailure {
	if len(payouts) == 0 {
		return nil
	}

	sellerIDs := lo.Uniq(lo.Map(payouts, func(p domain.Payout, _ int) string {
		return p.SellerID
	}))

	destinations := make(map[string]string, len(sellerIDs))
	accounts, err := s.accounts.GetBySellerIDs(ctx, sellerIDs)
	if err != nil {
		// every payout below fails and is left for the next retry
		s.logger.ErrorContext(ctx, "payout accounts lookup failed", "err", err)
	}
	for _, a := range accounts {
		destinations[a.SellerID] = a.GatewayAccountID
	}

	var failures []domain.PayoutFailure
	for _, p := range payouts {
		if err := s.payOne(ctx, p, destinations[p.SellerID]); err != nil {
			failures = append(failures, domain.PayoutFailure{
				PayoutID: p.ID,
				OrderID:  p.OrderID,
				SellerID: p.SellerID,
				Err:      err,
			})
		}
	}

	return failures
}

func (s *SettlementService) payOne(ctx context.Context, p domain.Payout, destination string) error {
	transferID, err := s.transfer(ctx, p, destination)
	if err != nil {
		if markErr := s.payouts.MarkFailed(ctx, p.ID, err.Error(), domain.IsRejected(err)); markErr != nil {
			s.logger.ErrorContext(ctx, "payout failure not recorded", "payout_id", p.ID, "err", markErr)
		}

		s.logger.WarnContext(ctx, "payout failed",
			"payout_id", p.ID,
			"order_id", p.OrderID,
			"seller_id", p.SellerID,
			"checkout_session_id", p.CheckoutSessionID,
			"err", err)

		s.publish(ctx, messaging.TopicPayoutFailed, p.SellerID, payoutResult(p, "", err, s.now()))

		return err
	}

	if markErr := s.payouts.MarkSucceeded(ctx, p.ID, transferID); markErr != nil {
		// the money moved; the next retry replays the same idempotency key and records it
		s.logger.ErrorContext(ctx, "payout succeeded but not recorded",
			"payout_id", p.ID,
			"transfer_id", transferID,
			"err", markErr)
	}

	s.publish(ctx, messaging.TopicPayoutSucceeded, p.SellerID, payoutResult(p, transferID, nil, s.now()))

	return nil
}

// transfer returns the gateway transfer id, empty when there was nothing to move.
func (s *SettlementService) transfer(ctx context.Context, p domain.Payout, destination string) (string, error) {
	// the platform fee took the whole price
	if p.Amount.AmountMinor == 0 {
		return "", nil
	}

	if destination == "" {
		return "", fmt.Errorf("seller[%s]: %w", p.SellerID, domain.ErrSellerNotPayable)
	}

	t, err := s.gateway.CreateTransfer(ctx, domain.TransferRequest{
		Amount:             p.Amount,
		DestinationAccount: destination,
		TransferGroup:      p.TransferGroup,
		IdempotencyKey:     p.IdempotencyKey(),
		Metadata: map[string]string{
			"order_id":            p.OrderID.String(),
			"payout_id":           p.ID.String(),
			"checkout_session_id": p.CheckoutSessionID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("gateway.CreateTransfer: %w", err)
	}

	return t.ID, nil
}

func (s *SettlementService) publish(ctx context.Context, topic, key string, event any) {
	if err := s.publisher.PublishEvent(ctx, topic, key, event); err != nil {
		s.logger.WarnContext(ctx, "event not published", "topic", topic, "key", key, "err", err)
	}
}

func payoutResult(p domain.Payout, transferID string, err error, at time.Time) messaging.PayoutResult {
	r := messaging.PayoutResult{
		PayoutID:          p.ID.String(),
		OrderID:           p.OrderID.String(),
		SellerID:          p.SellerID,
		CheckoutSessionID: p.CheckoutSessionID,
		AmountMinor:       p.Amount.AmountMinor,
		Currency:          p.Amount.Currency.String(),
		TransferID:        transferID,
		Attempts:          p.Attempts + 1,
		At:                at.UTC(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
