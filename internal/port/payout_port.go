package port

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/notemarket/internal/domain"
)

type PayoutRepository interface {
	GetPayoutsBySession(ctx context.Context, checkoutSessionID string) ([]domain.Payout, error)

	// ListRetryable returns failed payouts and pending payouts created before pendingBefore,
	// with fewer than maxAttempts attempts.
	ListRetryable(ctx context.Context, pendingBefore time.Time, maxAttempts int, limit int) ([]domain.Payout, error)

	MarkSucceeded(ctx context.Context, payoutID uuid.UUID, transferID string) error

	// MarkFailed with rotateKey moves the payout to its next idempotency key.
	// Use it only when the gateway rejected the transfer for sure.
	MarkFailed(ctx context.Context, payoutID uuid.UUID, lastError string, rotateKey bool) error
}
