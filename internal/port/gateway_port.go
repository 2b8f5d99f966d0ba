package port

import (
	"context"

	"github.com/nikolayk812/notemarket/internal/domain"
)

// PaymentGateway is the hosted payments provider. Every error returned is a *domain.GatewayError,
// except ParseEvent which returns domain.ErrInvalidSignature for payloads it cannot trust.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req domain.CheckoutSessionRequest) (domain.CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, checkoutSessionID string) error
	RetrievePaymentIntent(ctx context.Context, paymentIntentID string) (domain.PaymentIntent, error)

	CreateTransfer(ctx context.Context, req domain.TransferRequest) (domain.Transfer, error)

	CreateConnectedAccount(ctx context.Context, req domain.ConnectedAccountRequest) (string, error)
	CreateAccountLink(ctx context.Context, req domain.AccountLinkRequest) (string, error)
	GetAccountFlags(ctx context.Context, gatewayAccountID string) (domain.AccountFlags, error)

	ParseEvent(payload []byte, signature string) (domain.GatewayEvent, error)
}
