package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/port"
	"github.com/nikolayk812/notemarket/internal/repository"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
)

type payoutRepositorySuite struct {
	suite.Suite

	pool     *pgxpool.Pool
	repo     port.PayoutRepository
	orders   port.OrderRepository
	listings port.ListingRepository

	container testcontainers.Container
}

func TestPayoutRepositorySuite(t *testing.T) {
	suite.Run(t, new(payoutRepositorySuite))
}

func (suite *payoutRepositorySuite) SetupSuite() {
	t := suite.T()
	ctx := context.Background()

	var (
		connStr string
		err     error
	)

	suite.container, connStr, err = startPostgres(ctx)
	require.NoError(t, err)

	suite.pool, err = pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	suite.repo = repository.NewPayout(suite.pool)
	suite.orders = repository.NewOrder(suite.pool)
	suite.listings = repository.NewListing(suite.pool)
}

func (suite *payoutRepositorySuite) TearDownSuite() {
	if suite.pool != nil {
		suite.pool.Close()
	}

	if suite.container != nil {
		if err := suite.container.Terminate(context.Background()); err != nil {
			suite.T().Logf("failed to terminate container: %v", err)
		}
	}
}

func (suite *payoutRepositorySuite) SetupTest() {
	require.NoError(suite.T(), truncateAll(context.Background(), suite.pool))
}

// settleGroup stores and completes a group of n orders and returns its payouts.
func (suite *payoutRepositorySuite) settleGroup(n int) []domain.Payout {
	t := suite.T()
	ctx := context.Background()

	buyerID := gofakeit.UUID()
	sessionID := randomSessionID()
	transferGroup := "order_" + gofakeit.UUID()
	cur := randomCurrency()

	orders := make([]domain.Order, 0, n)
	for range n {
		listing := randomListing()
		listing.Price.Currency = cur

		id, err := suite.listings.InsertListing(ctx, listing)
		require.NoError(t, err)
		listing.ID = id

		orders = append(orders, randomOrder(listing, buyerID, sessionID, transferGroup))
	}

	_, err := suite.orders.InsertOrders(ctx, orders)
	require.NoError(t, err)

	payouts, err := suite.orders.CompleteGroup(ctx, sessionID, "")
	require.NoError(t, err)
	require.Len(t, payouts, n)

	return payouts
}

func payoutIDs(payouts []domain.Payout) []uuid.UUID {
	return lo.Map(payouts, func(p domain.Payout, _ int) uuid.UUID {
		return p.ID
	})
}

func (suite *payoutRepositorySuite) TestGetPayoutsBySession() {
	t := suite.T()
	ctx := context.Background()

	expected := suite.settleGroup(2)
	suite.settleGroup(1)

	actual, err := suite.repo.GetPayoutsBySession(ctx, expected[0].CheckoutSessionID)
	require.NoError(t, err)
	require.Len(t, actual, 2)

	byID := lo.KeyBy(actual, func(p domain.Payout) uuid.UUID {
		return p.ID
	})
	for _, p := range expected {
		assertPayout(t, p, byID[p.ID])
	}

	none, err := suite.repo.GetPayoutsBySession(ctx, randomSessionID())
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = suite.repo.GetPayoutsBySession(ctx, "")
	require.EqualError(t, err, "checkoutSessionID is empty")
}

func (suite *payoutRepositorySuite) TestMarkSucceeded() {
	t := suite.T()
	ctx := context.Background()

	payouts := suite.settleGroup(1)
	expected := payouts[0]

	require.NoError(t, suite.repo.MarkFailed(ctx, expected.ID, "gateway transfers.create: status 500: api_error: boom", false))
	require.NoError(t, suite.repo.MarkSucceeded(ctx, expected.ID, "tr_123"))

	actual, err := suite.repo.GetPayoutsBySession(ctx, expected.CheckoutSessionID)
	require.NoError(t, err)
	require.Len(t, actual, 1)

	expected.Status = domain.PayoutStatusSucceeded
	expected.TransferID = "tr_123"
	expected.Attempts = 2
	assertPayout(t, expected, actual[0])
}

func (suite *payoutRepositorySuite) TestMarkFailed() {
	t := suite.T()
	ctx := context.Background()

	payouts := suite.settleGroup(2)
	failing, succeeded := payouts[0], payouts[1]

	require.NoError(t, suite.repo.MarkFailed(ctx, failing.ID, "no destination", false))

	require.NoError(t, suite.repo.MarkSucceeded(ctx, succeeded.ID, "tr_ok"))
	// a late failure report never downgrades a finished transfer
	require.NoError(t, suite.repo.MarkFailed(ctx, succeeded.ID, "timeout", false))

	actual, err := suite.repo.GetPayoutsBySession(ctx, failing.CheckoutSessionID)
	require.NoError(t, err)

	byID := lo.KeyBy(actual, func(p domain.Payout) uuid.UUID {
		return p.ID
	})

	assert.Equal(t, domain.PayoutStatusFailed, byID[failing.ID].Status)
	assert.Equal(t, "no destination", byID[failing.ID].LastError)
	assert.Equal(t, 1, byID[failing.ID].Attempts)
	assert.True(t, byID[failing.ID].NeedsRetry())

	assert.Equal(t, domain.PayoutStatusSucceeded, byID[succeeded.ID].Status)
	assert.Equal(t, "tr_ok", byID[succeeded.ID].TransferID)
	assert.Equal(t, 2, byID[succeeded.ID].Attempts)
	assert.False(t, byID[succeeded.ID].NeedsRetry())
}

func (suite *payoutRepositorySuite) TestMarkFailed_RotateKey() {
	t := suite.T()
	ctx := context.Background()

	payouts := suite.settleGroup(2)
	rejected, succeeded := payouts[0], payouts[1]

	require.NoError(t, suite.repo.MarkFailed(ctx, rejected.ID, "balance_insufficient", true))
	// an unknown outcome keeps the key so a retry cannot pay twice
	require.NoError(t, suite.repo.MarkFailed(ctx, rejected.ID, "connection reset", false))

	require.NoError(t, suite.repo.MarkSucceeded(ctx, succeeded.ID, "tr_ok"))
	require.NoError(t, suite.repo.MarkFailed(ctx, succeeded.ID, "late rejection", true))

	actual, err := suite.repo.GetPayoutsBySession(ctx, rejected.CheckoutSessionID)
	require.NoError(t, err)

	byID := lo.KeyBy(actual, func(p domain.Payout) uuid.UUID {
		return p.ID
	})

	assert.Equal(t, 1, byID[rejected.ID].KeySeq)
	assert.Equal(t, 2, byID[rejected.ID].Attempts)
	assert.Equal(t, "payout-"+rejected.ID.String()+"-1", byID[rejected.ID].IdempotencyKey())

	assert.Zero(t, byID[succeeded.ID].KeySeq)
	assert.Equal(t, "payout-"+succeeded.ID.String(), byID[succeeded.ID].IdempotencyKey())
}

func (suite *payoutRepositorySuite) TestMark_Invalid() {
	t := suite.T()
	ctx := context.Background()

	err := suite.repo.MarkSucceeded(ctx, uuid.Nil, "tr_1")
	require.EqualError(t, err, "payoutID is empty")

	err = suite.repo.MarkSucceeded(ctx, uuid.New(), "tr_1")
	require.EqualError(t, err, "q.MarkPayoutSucceeded: payout not found")

	err = suite.repo.MarkFailed(ctx, uuid.New(), "boom", false)
	require.ErrorIs(t, err, repository.ErrPayoutNotFound)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func (suite *payoutRepositorySuite) TestListRetryable() {
	ctx := context.Background()

	pending := suite.settleGroup(1)[0]

	failed := suite.settleGroup(1)[0]
	require.NoError(suite.T(), suite.repo.MarkFailed(ctx, failed.ID, "boom", false))

	exhausted := suite.settleGroup(1)[0]
	for range 3 {
		require.NoError(suite.T(), suite.repo.MarkFailed(ctx, exhausted.ID, "boom", false))
	}

	succeeded := suite.settleGroup(1)[0]
	require.NoError(suite.T(), suite.repo.MarkSucceeded(ctx, succeeded.ID, "tr_ok"))

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name          string
		pendingBefore time.Time
		maxAttempts   int
		limit         int
		wantIDs       []uuid.UUID
		wantError     string
	}{
		{
			name:          "recent pending payouts are still in flight",
			pendingBefore: past,
			maxAttempts:   10,
			limit:         10,
			wantIDs:       []uuid.UUID{failed.ID, exhausted.ID},
		},
		{
			name:          "stale pending payouts are retried",
			pendingBefore: future,
			maxAttempts:   10,
			limit:         10,
			wantIDs:       []uuid.UUID{pending.ID, failed.ID, exhausted.ID},
		},
		{
			name:          "exhausted payouts are skipped",
			pendingBefore: future,
			maxAttempts:   3,
			limit:         10,
			wantIDs:       []uuid.UUID{pending.ID, failed.ID},
		},
		{
			name:          "limit: oldest first",
			pendingBefore: future,
			maxAttempts:   10,
			limit:         1,
			wantIDs:       []uuid.UUID{pending.ID},
		},
		{
			name:          "zero max attempts: error",
			pendingBefore: future,
			limit:         10,
			wantError:     "maxAttempts[0] must be positive",
		},
		{
			name:          "zero limit: error",
			pendingBefore: future,
			maxAttempts:   10,
			wantError:     "limit[0] must be positive",
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()

			payouts, err := suite.repo.ListRetryable(ctx, tt.pendingBefore, tt.maxAttempts, tt.limit)
			if tt.wantError != "" {
				require.EqualError(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantIDs, payoutIDs(payouts))
		})
	}
}
