package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/notemarket/internal/db"
	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/port"
	"github.com/samber/lo"
)

var (
	ErrPayoutAccountNotFound = fmt.Errorf("payout account %w", domain.ErrNotFound)
	ErrPayoutAccountVerified = fmt.Errorf("payout account is already verified: %w", domain.ErrValidation)
)

type payoutAccountRepository struct {
	q *db.Queries
}

func NewPayoutAccount(pool *pgxpool.Pool) port.PayoutAccountRepository {
	return &payoutAccountRepository{
		q: db.New(pool),
	}
}

func NewPayoutAccountWithTx(tx pgx.Tx) port.PayoutAccountRepository {
	return &payoutAccountRepository{
		q: db.New(tx),
	}
}

func (r *payoutAccountRepository) GetBySellerID(ctx context.Context, sellerID string) (domain.PayoutAccount, error) {
	if sellerID == "" {
		return domain.PayoutAccount{}, fmt.Errorf("sellerID is empty")
	}

	dbAccount, err := r.q.GetPayoutAccount(ctx, sellerID)

	return mapDBPayoutAccountResult(dbAccount, err, "q.GetPayoutAccount")
}

func (r *payoutAccountRepository) GetByGatewayAccountID(ctx context.Context, gatewayAccountID string) (domain.PayoutAccount, error) {
	if gatewayAccountID == "" {
		return domain.PayoutAccount{}, fmt.Errorf("gatewayAccountID is empty")
	}

	dbAccount, err := r.q.GetPayoutAccountByGatewayID(ctx, gatewayAccountID)

	return mapDBPayoutAccountResult(dbAccount, err, "q.GetPayoutAccountByGatewayID")
}

func (r *payoutAccountRepository) GetBySellerIDs(ctx context.Context, sellerIDs []string) ([]domain.PayoutAccount, error) {
	if len(sellerIDs) == 0 {
		return nil, nil
	}

	dbAccounts, err := r.q.GetPayoutAccounts(ctx, sellerIDs)
	if err != nil {
		return nil, fmt.Errorf("q.GetPayoutAccounts: %w", err)
	}

	accounts := make([]domain.PayoutAccount, 0, len(dbAccounts))
	for _, a := range dbAccounts {
		account, err := mapDBPayoutAccountToDomain(a)
		if err != nil {
			return nil, fmt.Errorf("mapDBPayoutAccountToDomain: %w", err)
		}
		accounts = append(accounts, account)
	}

	return accounts, nil
}

func (r *payoutAccountRepository) UpsertPending(ctx context.Context, sellerID, gatewayAccountID string) (domain.PayoutAccount, error) {
	if sellerID == "" {
		return domain.PayoutAccount{}, fmt.Errorf("sellerID is empty")
	}

	if gatewayAccountID == "" {
		return domain.PayoutAccount{}, fmt.Errorf("gatewayAccountID is empty")
	}

	dbAccount, err := r.q.UpsertPendingPayoutAccount(ctx, db.UpsertPendingPayoutAccountParams{
		SellerID:         sellerID,
		GatewayAccountID: gatewayAccountID,
	})

	account, err := mapDBPayoutAccountResult(dbAccount, err, "q.UpsertPendingPayoutAccount")
	if errors.Is(err, ErrPayoutAccountNotFound) {
		// the conflict row exists but the WHERE guard rejected the update
		return account, fmt.Errorf("q.UpsertPendingPayoutAccount: %w", ErrPayoutAccountVerified)
	}

	return account, err
}

func (r *payoutAccountRepository) UpdateStatus(ctx context.Context, gatewayAccountID string, status domain.AccountStatus) (domain.PayoutAccount, error) {
	if gatewayAccountID == "" {
		return domain.PayoutAccount{}, fmt.Errorf("gatewayAccountID is empty")
	}

	if _, err := domain.ToAccountStatus(string(status)); err != nil {
		return domain.PayoutAccount{}, fmt.Errorf("domain.ToAccountStatus[%s]: %w", status, err)
	}

	dbAccount, err := r.q.UpdatePayoutAccountStatus(ctx, db.UpdatePayoutAccountStatusParams{
		Status:           string(status),
		GatewayAccountID: gatewayAccountID,
	})

	return mapDBPayoutAccountResult(dbAccount, err, "q.UpdatePayoutAccountStatus")
}

func mapDBPayoutAccountResult(a db.PayoutAccount, err error, op string) (domain.PayoutAccount, error) {
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PayoutAccount{}, fmt.Errorf("%s: %w", op, ErrPayoutAccountNotFound)
		}
		return domain.PayoutAccount{}, fmt.Errorf("%s: %w", op, err)
	}

	account, err := mapDBPayoutAccountToDomain(a)
	if err != nil {
		return domain.PayoutAccount{}, fmt.Errorf("mapDBPayoutAccountToDomain: %w", err)
	}

	return account, nil
}

func mapDBPayoutAccountToDomain(a db.PayoutAccount) (domain.PayoutAccount, error) {
	status, err := domain.ToAccountStatus(a.Status)
	if err != nil {
		return domain.PayoutAccount{}, fmt.Errorf("domain.ToAccountStatus[%s]: %w", a.Status, err)
	}

	return domain.PayoutAccount{
		SellerID:         a.SellerID,
		GatewayAccountID: lo.FromPtr(a.GatewayAccountID),
		Status:           status,
		CreatedAt:        a.CreatedAt,
		UpdatedAt:        a.UpdatedAt,
	}, nil
}
