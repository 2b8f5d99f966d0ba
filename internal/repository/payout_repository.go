package repository

import (
	"context"
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
	ErrPayoutNotFound = fmt.Errorf("payout %w", domain.ErrNotFound)
)

type payoutRepository struct {
	q *db.Queries
}

func NewPayout(pool *pgxpool.Pool) port.PayoutRepository {
	return &payoutRepository{
		q: db.New(pool),
	}
}

func NewPayoutWithTx(tx pgx.Tx) port.PayoutRepository {
	return &payoutRepository{
		q: db.New(tx),
	}
}

func (r *payoutRepository) GetPayoutsBySession(ctx context.Context, checkoutSessionID string) ([]domain.Payout, error) {
	if checkoutSessionID == "" {
		return nil, fmt.Errorf("checkoutSessionID is empty")
	}

	dbPayouts, err := r.q.GetPayoutsBySession(ctx, checkoutSessionID)
	if err != nil {
		return nil, fmt.Errorf("q.GetPayoutsBySession: %w", err)
	}

	return mapDBPayoutsToDomain(dbPayouts)
}

func (r *payoutRepository) ListRetryable(ctx context.Context, pendingBefore time.Time, maxAttempts int, limit int) ([]domain.Payout, error) {
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("maxAttempts[%d] must be positive", maxAttempts)
	}

	if limit <= 0 {
		return nil, fmt.Errorf("limit[%d] must be positive", limit)
	}

	dbPayouts, err := r.q.ListRetryablePayouts(ctx, db.ListRetryablePayoutsParams{
		MaxAttempts:   int32(maxAttempts),
		PendingBefore: pendingBefore,
		RowLimit:      int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("q.ListRetryablePayouts: %w", err)
	}

	return mapDBPayoutsToDomain(dbPayouts)
}

func (r *payoutRepository) MarkSucceeded(ctx context.Context, payoutID uuid.UUID, transferID string) error {
	if payoutID == uuid.Nil {
		return fmt.Errorf("payoutID is empty")
	}

	rowsAffected, err := r.q.MarkPayoutSucceeded(ctx, db.MarkPayoutSucceededParams{
		TransferID: lo.EmptyableToPtr(transferID),
		ID:         payoutID,
	})
	if err != nil {
		return fmt.Errorf("q.MarkPayoutSucceeded: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("q.MarkPayoutSucceeded: %w", ErrPayoutNotFound)
	}

	return nil
}

func (r *payoutRepository) MarkFailed(ctx context.Context, payoutID uuid.UUID, lastError string, rotateKey bool) error {
	if payoutID == uuid.Nil {
		return fmt.Errorf("payoutID is empty")
	}

	rowsAffected, err := r.q.MarkPayoutFailed(ctx, db.MarkPayoutFailedParams{
		LastError: lo.ToPtr(lastError),
		RotateKey: rotateKey,
		ID:        payoutID,
	})
	if err != nil {
		return fmt.Errorf("q.MarkPayoutFailed: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("q.MarkPayoutFailed: %w", ErrPayoutNotFound)
	}

	return nil
}

func mapDBPayoutsToDomain(dbPayouts []db.Payout) ([]domain.Payout, error) {
	payouts := make([]domain.Payout, 0, len(dbPayouts))

	for _, p := range dbPayouts {
		payout, err := mapDBPayoutToDomain(p)
		if err != nil {
			return nil, fmt.Errorf("mapDBPayoutToDomain: %w", err)
		}
		payouts = append(payouts, payout)
	}

	return payouts, nil
}

func mapDBPayoutToDomain(p db.Payout) (domain.Payout, error) {
	parsedCurrency, err := domain.ParseCurrency(p.Currency)
	if err != nil {
		return domain.Payout{}, fmt.Errorf("domain.ParseCurrency: %w", err)
	}

	status, err := domain.ToPayoutStatus(p.Status)
	if err != nil {
		return domain.Payout{}, fmt.Errorf("domain.ToPayoutStatus[%s]: %w", p.Status, err)
	}

	return domain.Payout{
		ID:                p.ID,
		OrderID:           p.OrderID,
		SellerID:          p.SellerID,
		CheckoutSessionID: p.CheckoutSessionID,
		Amount:            domain.Money{AmountMinor: p.AmountMinor, Currency: parsedCurrency},
		TransferGroup:     p.TransferGroup,
		Status:            status,
		TransferID:        lo.FromPtr(p.TransferID),
		Attempts:          int(p.Attempts),
		LastError:         lo.FromPtr(p.LastError),
		KeySeq:            int(p.TransferKeySeq),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}, nil
}
