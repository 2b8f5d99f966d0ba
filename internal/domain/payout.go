package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type PayoutStatus string

// remember to add new statuses to the validPayoutStatuses map
const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusSucceeded PayoutStatus = "succeeded"
	PayoutStatusFailed    PayoutStatus = "failed"
)

var validPayoutStatuses = map[PayoutStatus]struct{}{
	PayoutStatusPending:   {},
	PayoutStatusSucceeded: {},
	PayoutStatusFailed:    {},
}

func ToPayoutStatus(s string) (PayoutStatus, error) {
	status := PayoutStatus(s)
	if _, ok := validPayoutStatuses[status]; ok {
		return status, nil
	}

	return "", errors.New("invalid payout status")
}

// Payout is the seller leg of a completed order. Pending and failed payouts
// still owe the seller money and are picked up by reconciliation.
type Payout struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	SellerID          string
	CheckoutSessionID string
	Amount            Money
	TransferGroup     string
	Status            PayoutStatus
	TransferID        string
	Attempts          int
	LastError         string
	// KeySeq moves on after the gateway definitively rejected a transfer,
	// so the next attempt is not answered from the gateway's idempotency cache.
	KeySeq int

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Payout) NeedsRetry() bool {
	return p.Status == PayoutStatusPending || p.Status == PayoutStatusFailed
}

// IdempotencyKey is stable across retries whose outcome is unknown,
// so the gateway never creates a second transfer.
func (p Payout) IdempotencyKey() string {
	if p.KeySeq == 0 {
		return "payout-" + p.ID.String()
	}
	return fmt.Sprintf("payout-%s-%d", p.ID, p.KeySeq)
}
