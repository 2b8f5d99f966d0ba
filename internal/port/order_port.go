package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikolayk812/notemarket/internal/domain"
)

type OrderRepository interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error)
	// GetSettlementGroup returns an empty group, not an error, when no order carries the session id.
	GetSettlementGroup(ctx context.Context, checkoutSessionID string) (domain.SettlementGroup, error)

	SearchOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error)

	// InsertOrders persists all orders of one checkout session in a single transaction.
	InsertOrders(ctx context.Context, orders []domain.Order) ([]uuid.UUID, error)

	// CompleteGroup moves pending orders of the session to completed and creates
	// a pending payout for each of them, atomically. Only orders completed by this
	// call are returned, so concurrent deliveries of one event never share payouts.
	// Payouts carry transferGroup, or the order's own group when it is empty.
	CompleteGroup(ctx context.Context, checkoutSessionID, transferGroup string) ([]domain.Payout, error)

	// FailGroup moves pending orders of the session to failed.
	FailGroup(ctx context.Context, checkoutSessionID string) (int64, error)
}
