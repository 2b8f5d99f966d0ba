package repository_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/text/currency"
)

// startPostgres starts a disposable postgres with the ledger schema applied.
func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("notemarket"),
		postgres.WithUsername("notemarket"),
		postgres.WithPassword("notemarket"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container, "", fmt.Errorf("container.ConnectionString: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return container, "", fmt.Errorf("pgxpool.New: %w", err)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		return container, "", fmt.Errorf("repository.Migrate: %w", err)
	}

	// a second run must be a no-op
	if err := repository.Migrate(ctx, pool); err != nil {
		return container, "", fmt.Errorf("repository.Migrate again: %w", err)
	}

	return container, connStr, nil
}

func truncateAll(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, "TRUNCATE TABLE payouts, orders, payout_accounts, listings CASCADE")
	return err
}

var currencies = []currency.Unit{currency.JPY, currency.USD, currency.EUR, currency.GBP}

func randomCurrency() currency.Unit {
	return currencies[gofakeit.Number(0, len(currencies)-1)]
}

func randomListing() domain.Listing {
	return domain.Listing{
		SellerID: gofakeit.UUID(),
		Title:    gofakeit.BookTitle(),
		Price: domain.Money{
			AmountMinor: int64(gofakeit.Number(0, 100_000)),
			Currency:    randomCurrency(),
		},
	}
}

func randomSessionID() string {
	return "cs_test_" + gofakeit.LetterN(24)
}

// randomOrder is a pending order of listing with a 10% fee.
func randomOrder(listing domain.Listing, buyerID, sessionID, transferGroup string) domain.Order {
	return domain.Order{
		NoteID:            listing.ID,
		BuyerID:           buyerID,
		SellerID:          listing.SellerID,
		CheckoutSessionID: sessionID,
		TransferGroup:     transferGroup,
		Price:             listing.Price,
		PlatformFeeMinor:  listing.Price.AmountMinor / 10,
		Status:            domain.OrderStatusPending,
	}
}

var cmpOpts = []cmp.Option{
	cmpopts.EquateComparable(currency.Unit{}),
	cmpopts.EquateEmpty(),
}

func assertOrder(t *testing.T, expected domain.Order, actual domain.Order) {
	t.Helper()

	opts := append(cmpOpts, cmpopts.IgnoreFields(domain.Order{}, "ID", "CreatedAt", "UpdatedAt"))

	diff := cmp.Diff(expected, actual, opts...)
	assert.Empty(t, diff)

	assert.NotEqual(t, uuid.Nil, actual.ID)
	assert.False(t, actual.CreatedAt.IsZero())
	assert.False(t, actual.UpdatedAt.IsZero())
}

func assertOrders(t *testing.T, expected []domain.Order, actual []domain.Order) {
	t.Helper()

	opts := append(cmpOpts,
		cmpopts.IgnoreFields(domain.Order{}, "CreatedAt", "UpdatedAt"),
		cmpopts.SortSlices(func(a, b domain.Order) bool {
			return a.ID.String() < b.ID.String()
		}),
	)

	diff := cmp.Diff(expected, actual, opts...)
	assert.Empty(t, diff)
}

func assertPayout(t *testing.T, expected domain.Payout, actual domain.Payout) {
	t.Helper()

	opts := append(cmpOpts, cmpopts.IgnoreFields(domain.Payout{}, "CreatedAt", "UpdatedAt"))

	diff := cmp.Diff(expected, actual, opts...)
	assert.Empty(t, diff)
}
