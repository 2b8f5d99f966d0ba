package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/notemarket/internal/db"
	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/port"
	"github.com/samber/lo"
)

var (
	ErrNotFound = fmt.Errorf("order %w", domain.ErrNotFound)
)

type orderRepository struct {
	q    *db.Queries
	dbtx db.DBTX
}

func NewOrder(pool *pgxpool.Pool) port.OrderRepository {
	return &orderRepository{
		q:    db.New(pool),
		dbtx: pool,
	}
}

func NewOrderWithTx(tx pgx.Tx) port.OrderRepository {
	return &orderRepository{
		q:    db.New(tx),
		dbtx: tx, // use provided transaction instead
	}
}

func (r *orderRepository) GetOrder(ctx context.Context, orderID uuid.UUID) (domain.Order, error) {
	var o domain.Order

	if orderID == uuid.Nil {
		return o, fmt.Errorf("orderID is empty")
	}

	dbOrder, err := r.q.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, fmt.Errorf("q.GetOrder: %w", ErrNotFound)
		}
		return o, fmt.Errorf("q.GetOrder: %w", err)
	}

	order, err := mapDBOrderToDomain(dbOrder)
	if err != nil {
		return o, fmt.Errorf("mapDBOrderToDomain: %w", err)
	}

	return order, nil
}

func (r *orderRepository) GetSettlementGroup(ctx context.Context, checkoutSessionID string) (domain.SettlementGroup, error) {
	g := domain.SettlementGroup{CheckoutSessionID: checkoutSessionID}

	if checkoutSessionID == "" {
		return g, fmt.Errorf("checkoutSessionID is empty")
	}

	dbOrders, err := r.q.GetOrdersBySession(ctx, checkoutSessionID)
	if err != nil {
		return g, fmt.Errorf("q.GetOrdersBySession: %w", err)
	}

	g.Orders, err = mapDBOrdersToDomain(dbOrders)
	if err != nil {
		return g, fmt.Errorf("mapDBOrdersToDomain: %w", err)
	}

	return g, nil
}

func mapDomainOrderFilterToDBFilter(filter domain.OrderFilter) db.SearchOrdersParams {
	statuses := lo.Map(filter.Statuses, func(s domain.OrderStatus, _ int) string {
		return string(s)
	})

	var createdAfter, createdBefore *time.Time

	if filter.CreatedAt != nil {
		createdAfter = filter.CreatedAt.After
		createdBefore = filter.CreatedAt.Before
	}

	return db.SearchOrdersParams{
		Ids:                nilSliceIfEmpty(filter.IDs),
		NoteIds:            nilSliceIfEmpty(filter.NoteIDs),
		BuyerIds:           nilSliceIfEmpty(filter.BuyerIDs),
		SellerIds:          nilSliceIfEmpty(filter.SellerIDs),
		CheckoutSessionIds: nilSliceIfEmpty(filter.CheckoutSessionIDs),
		Statuses:           nilSliceIfEmpty(statuses),
		CreatedAfter:       createdAfter,
		CreatedBefore:      createdBefore,
	}
}

func (r *orderRepository) SearchOrders(ctx context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter.Validate: %w", err)
	}

	dbOrders, err := r.q.SearchOrders(ctx, mapDomainOrderFilterToDBFilter(filter))
	if err != nil {
		return nil, fmt.Errorf("q.SearchOrders: %w", err)
	}

	orders, err := mapDBOrdersToDomain(dbOrders)
	if err != nil {
		return nil, fmt.Errorf("mapDBOrdersToDomain: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) InsertOrders(ctx context.Context, orders []domain.Order) ([]uuid.UUID, error) {
	if len(orders) == 0 {
		return nil, errors.New("no orders")
	}

	for i, o := range orders {
		if err := validateNewOrder(o); err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
	}

	ids, err := withTx(ctx, r.dbtx, func(q *db.Queries) ([]uuid.UUID, error) {
		ids := make([]uuid.UUID, 0, len(orders))

		// TODO: batch
		for _, o := range orders {
			id, err := q.InsertOrder(ctx, db.InsertOrderParams{
				NoteID:            o.NoteID,
				BuyerID:           o.BuyerID,
				SellerID:          o.SellerID,
				CheckoutSessionID: o.CheckoutSessionID,
				TransferGroup:     o.TransferGroup,
				PriceMinor:        o.Price.AmountMinor,
				Currency:          o.Price.Currency.String(),
				PlatformFeeMinor:  o.PlatformFeeMinor,
			})
			if err != nil {
				return nil, fmt.Errorf("q.InsertOrder: %w", err)
			}

			ids = append(ids, id)
		}

		return ids, nil
	})
	if err != nil {
		return nil, fmt.Errorf("withTx: %w", err)
	}

	return ids, nil
}

func (r *orderRepository) CompleteGroup(ctx context.Context, checkoutSessionID, transferGroup string) ([]domain.Payout, error) {
	if checkoutSessionID == "" {
		return nil, fmt.Errorf("checkoutSessionID is empty")
	}

	payouts, err := withTx(ctx, r.dbtx, func(q *db.Queries) ([]domain.Payout, error) {
		dbOrders, err := q.CompleteOrders(ctx, checkoutSessionID)
		if err != nil {
			return nil, fmt.Errorf("q.CompleteOrders: %w", err)
		}

		completed, err := mapDBOrdersToDomain(dbOrders)
		if err != nil {
			return nil, fmt.Errorf("mapDBOrdersToDomain: %w", err)
		}

		payouts := make([]domain.Payout, 0, len(completed))
		for _, o := range completed {
			p := domain.Payout{
				OrderID:           o.ID,
				SellerID:          o.SellerID,
				CheckoutSessionID: o.CheckoutSessionID,
				Amount:            domain.Money{AmountMinor: o.NetMinor(), Currency: o.Price.Currency},
				TransferGroup:     lo.CoalesceOrEmpty(transferGroup, o.TransferGroup),
			}

			row, err := q.InsertPayout(ctx, db.InsertPayoutParams{
				OrderID:           p.OrderID,
				SellerID:          p.SellerID,
				CheckoutSessionID: p.CheckoutSessionID,
				AmountMinor:       p.Amount.AmountMinor,
				Currency:          p.Amount.Currency.String(),
				TransferGroup:     p.TransferGroup,
			})
			if err != nil {
				return nil, fmt.Errorf("q.InsertPayout: %w", err)
			}

			p.ID = row.ID
			p.CreatedAt = row.CreatedAt
			p.UpdatedAt = row.UpdatedAt
			p.Status, err = domain.ToPayoutStatus(row.Status)
			if err != nil {
				return nil, fmt.Errorf("domain.ToPayoutStatus[%s]: %w", row.Status, err)
			}

			payouts = append(payouts, p)
		}

		return payouts, nil
	})
	if err != nil {
		return nil, fmt.Errorf("withTx: %w", err)
	}

	return payouts, nil
}

func (r *orderRepository) FailGroup(ctx context.Context, checkoutSessionID string) (int64, error) {
	if checkoutSessionID == "" {
		return 0, fmt.Errorf("checkoutSessionID is empty")
	}

	rowsAffected, err := r.q.FailOrders(ctx, checkoutSessionID)
	if err != nil {
		return 0, fmt.Errorf("q.FailOrders: %w", err)
	}

	return rowsAffected, nil
}

func validateNewOrder(o domain.Order) error {
	if o.NoteID == uuid.Nil {
		return errors.New("noteID is empty")
	}

	if o.BuyerID == "" {
		return errors.New("buyerID is empty")
	}

	if o.SellerID == "" {
		return errors.New("sellerID is empty")
	}

	if o.CheckoutSessionID == "" {
		return errors.New("checkoutSessionID is empty")
	}

	if o.TransferGroup == "" {
		return errors.New("transferGroup is empty")
	}

	if err := o.Price.Validate(); err != nil {
		return fmt.Errorf("price: %w", err)
	}

	if o.PlatformFeeMinor < 0 || o.PlatformFeeMinor > o.Price.AmountMinor {
		return fmt.Errorf("platformFee[%d] is out of range", o.PlatformFeeMinor)
	}

	return nil
}

func mapDBOrdersToDomain(dbOrders []db.Order) ([]domain.Order, error) {
	orders := make([]domain.Order, 0, len(dbOrders))

	for _, o := range dbOrders {
		order, err := mapDBOrderToDomain(o)
		if err != nil {
			return nil, fmt.Errorf("mapDBOrderToDomain: %w", err)
		}
		orders = append(orders, order)
	}

	return orders, nil
}

func mapDBOrderToDomain(o db.Order) (domain.Order, error) {
	parsedCurrency, err := domain.ParseCurrency(o.Currency)
	if err != nil {
		return domain.Order{}, fmt.Errorf("domain.ParseCurrency: %w", err)
	}

	status, err := domain.ToOrderStatus(o.Status)
	if err != nil {
		return domain.Order{}, fmt.Errorf("domain.ToOrderStatus[%s]: %w", o.Status, err)
	}

	return domain.Order{
		ID:                o.ID,
		NoteID:            o.NoteID,
		BuyerID:           o.BuyerID,
		SellerID:          o.SellerID,
		CheckoutSessionID: o.CheckoutSessionID,
		TransferGroup:     o.TransferGroup,
		Price:             domain.Money{AmountMinor: o.PriceMinor, Currency: parsedCurrency},
		PlatformFeeMinor:  o.PlatformFeeMinor,
		Status:            status,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}, nil
}
