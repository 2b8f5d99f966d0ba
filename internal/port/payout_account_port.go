package port

import (
	"context"

	"github.com/nikolayk812/notemarket/internal/domain"
)

type PayoutAccountRepository interface {
	GetBySellerID(ctx context.Context, sellerID string) (domain.PayoutAccount, error)
	GetBySellerIDs(ctx context.Context, sellerIDs []string) ([]domain.PayoutAccount, error)
	GetByGatewayAccountID(ctx context.Context, gatewayAccountID string) (domain.PayoutAccount, error)

	// UpsertPending records a freshly created gateway account. It refuses to touch a verified account.
	UpsertPending(ctx context.Context, sellerID, gatewayAccountID string) (domain.PayoutAccount, error)

	// UpdateStatus never downgrades a verified account; the stored account is returned.
	UpdateStatus(ctx context.Context, gatewayAccountID string, status domain.AccountStatus) (domain.PayoutAccount, error)
}
