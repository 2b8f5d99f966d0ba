package domain

import (
	"time"

	"github.com/google/uuid"
)

type LineItem struct {
	ListingID  uuid.UUID
	Name       string
	UnitAmount Money
	Quantity   int64
}

type CheckoutSessionRequest struct {
	LineItems      []LineItem
	TransferGroup  string
	BuyerID        string
	Metadata       map[string]string
	SuccessURL     string
	CancelURL      string
	ExpiresAt      time.Time
	IdempotencyKey string
}

type CheckoutSession struct {
	ID            string
	URL           string
	TransferGroup string
	ExpiresAt     time.Time
}

type PaymentIntent struct {
	ID            string
	TransferGroup string
	Status        string
}

type TransferRequest struct {
	Amount             Money
	DestinationAccount string
	TransferGroup      string
	IdempotencyKey     string
	Metadata           map[string]string
}

type Transfer struct {
	ID string
}

type ConnectedAccountRequest struct {
	SellerID       string
	Email          string
	Country        string
	IdempotencyKey string
}

type AccountLinkRequest struct {
	GatewayAccountID string
	RefreshURL       string
	ReturnURL        string
}

type GatewayEventType string

const (
	EventSessionCompleted GatewayEventType = "session_completed"
	EventSessionExpired   GatewayEventType = "session_expired"
	EventAccountUpdated   GatewayEventType = "account_updated"
	EventIgnored          GatewayEventType = "ignored"
)

// GatewayEvent is a verified webhook event translated out of the gateway's vocabulary.
type GatewayEvent struct {
	ID   string
	Type GatewayEventType
	// RawType is the gateway's own event name, kept for logging.
	RawType string

	CheckoutSessionID string
	TransferGroup     string
	PaymentIntentID   string
	Metadata          map[string]string

	GatewayAccountID string
	AccountFlags     AccountFlags
}
