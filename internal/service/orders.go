package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/port"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
)

// CheckoutStatus is the buyer facing view of one checkout session.
type CheckoutStatus struct {
	CheckoutSessionID string
	// Status is pending until the gateway reports the session, then completed or failed.
	Status  domain.OrderStatus
	Orders  []domain.Order
	Payouts []domain.Payout
	// PayoutsOutstanding counts sellers still owed money for this session.
	PayoutsOutstanding int
}

// OrderQueryService answers read-only questions about the ledger.
type OrderQueryService struct {
	orders  port.OrderRepository
	payouts port.PayoutRepository
	logger  *slog.Logger
}

func NewOrderQuery(orders port.OrderRepository, payouts port.PayoutRepository, logger *slog.Logger) (*OrderQueryService, error) {
	if orders == nil || payouts == nil {
		return nil, errors.New("dependencies must not be nil")
	}

	return &OrderQueryService{
		orders:  orders,
		payouts: payouts,
		logger:  loggerOrDefault(logger),
	}, nil
}

func (s *OrderQueryService) GetOrder(ctx context.Context, orderID uuid.UUID) (_ domain.Order, err error) {
	ctx, done := trackOperation(ctx, "OrderQueryService.GetOrder", attribute.String("order_id", orderID.String()))
	defer func() { done(err) }()

	if orderID == uuid.Nil {
		return domain.Order{}, fmt.Errorf("%w: orderID is empty", domain.ErrValidation)
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, storeError("orders.GetOrder", err)
	}

	return order, nil
}

// SearchOrders backs purchase history and "has this buyer bought this note" checks.
func (s *OrderQueryService) SearchOrders(ctx context.Context, filter domain.OrderFilter) (_ []domain.Order, err error) {
	ctx, done := trackOperation(ctx, "OrderQueryService.SearchOrders")
	defer func() { done(err) }()

	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("%w: filter: %w", domain.ErrValidation, err)
	}

	orders, err := s.orders.SearchOrders(ctx, filter)
	if err != nil {
		return nil, storeError("orders.SearchOrders", err)
	}

	return orders, nil
}

func (s *OrderQueryService) CheckoutStatus(ctx context.Context, checkoutSessionID string) (_ CheckoutStatus, err error) {
	ctx, done := trackOperation(ctx, "OrderQueryService.CheckoutStatus", attribute.String("checkout_session_id", checkoutSessionID))
	defer func() { done(err) }()

	status := CheckoutStatus{CheckoutSessionID: checkoutSessionID}

	if checkoutSessionID == "" {
		return status, fmt.Errorf("%w: checkoutSessionID is empty", domain.ErrValidation)
	}

	group, err := s.orders.GetSettlementGroup(ctx, checkoutSessionID)
	if err != nil {
		return status, storeError("orders.GetSettlementGroup", err)
	}

	if len(group.Orders) == 0 {
		return status, fmt.Errorf("session[%s]: %w", checkoutSessionID, domain.ErrNotFound)
	}

	payouts, err := s.payouts.GetPayoutsBySession(ctx, checkoutSessionID)
	if err != nil {
		return status, storeError("payouts.GetPayoutsBySession", err)
	}

	status.Orders = group.Orders
	status.Payouts = payouts
	status.PayoutsOutstanding = lo.CountBy(payouts, func(p domain.Payout) bool {
		return p.NeedsRetry()
	})

	switch {
	case group.AllCompleted():
		status.Status = domain.OrderStatusCompleted
	case len(group.Pending()) > 0:
		status.Status = domain.OrderStatusPending
	default:
		status.Status = domain.OrderStatusFailed
	}

	return status, nil
}
