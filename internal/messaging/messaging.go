package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/nikolayk812/notemarket/internal/port"
)

const (
	TopicSettlementCompleted = "settlement.completed"
	TopicSettlementFailed    = "settlement.failed"
	TopicPayoutSucceeded     = "payout.succeeded"
	TopicPayoutFailed        = "payout.failed"
)

type SettlementCompleted struct {
	CheckoutSessionID string    `json:"checkout_session_id"`
	TransferGroup     string    `json:"transfer_group"`
	OrderIDs          []string  `json:"order_ids"`
	FailedPayouts     int       `json:"failed_payouts"`
	CompletedAt       time.Time `json:"completed_at"`
}

type SettlementFailed struct {
	CheckoutSessionID string    `json:"checkout_session_id"`
	FailedOrders      int64     `json:"failed_orders"`
	FailedAt          time.Time `json:"failed_at"`
}

type PayoutResult struct {
	PayoutID          string    `json:"payout_id"`
	OrderID           string    `json:"order_id"`
	SellerID          string    `json:"seller_id"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	AmountMinor       int64     `json:"amount_minor"`
	Currency          string    `json:"currency"`
	TransferID        string    `json:"transfer_id,omitempty"`
	Attempts          int       `json:"attempts"`
	Error             string    `json:"error,omitempty"`
	At                time.Time `json:"at"`
}

type logPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher is used when no broker is configured; events only reach the log.
func NewLogPublisher(logger *slog.Logger) port.EventPublisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) PublishEvent(ctx context.Context, topic string, key string, event any) error {
	p.logger.InfoContext(ctx, "event", "topic", topic, "key", key, "event", event)
	return nil
}
