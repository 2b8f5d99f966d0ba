package service_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/port"
	"github.com/samber/lo"
	"golang.org/x/text/currency"
)

var (
	_ port.ListingRepository       = (*memStore)(nil)
	_ port.OrderRepository         = (*memStore)(nil)
	_ port.PayoutRepository        = (*memStore)(nil)
	_ port.PayoutAccountRepository = (*memStore)(nil)
	_ port.PaymentGateway          = (*fakeGateway)(nil)
	_ port.EventPublisher          = (*fakePublisher)(nil)
)

var errStoreDown = errors.New("connection refused")

// memStore is an in-memory ledger store with the same atomicity as the SQL one.
type memStore struct {
	mu sync.Mutex

	listings map[uuid.UUID]domain.Listing
	accounts map[string]domain.PayoutAccount
	orders   []domain.Order
	payouts  []domain.Payout

	insertOrdersErrs int // InsertOrders fails this many times
	upsertErrs       int // UpsertPending fails this many times
	insertOrderCalls int
}

func newMemStore() *memStore {
	return &memStore{
		listings: make(map[uuid.UUID]domain.Listing),
		accounts: make(map[string]domain.PayoutAccount),
	}
}

func (m *memStore) GetListings(_ context.Context, ids []uuid.UUID) ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []domain.Listing
	for _, id := range ids {
		if l, ok := m.listings[id]; ok {
			result = append(result, l)
		}
	}
	return result, nil
}

func (m *memStore) InsertListing(_ context.Context, l domain.Listing) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	m.listings[l.ID] = l
	return l.ID, nil
}

func (m *memStore) GetOrder(_ context.Context, orderID uuid.UUID) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, o := range m.orders {
		if o.ID == orderID {
			return o, nil
		}
	}
	return domain.Order{}, fmt.Errorf("order %w", domain.ErrNotFound)
}

func (m *memStore) GetSettlementGroup(_ context.Context, sessionID string) (domain.SettlementGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := domain.SettlementGroup{CheckoutSessionID: sessionID}
	for _, o := range m.orders {
		if o.CheckoutSessionID == sessionID {
			g.Orders = append(g.Orders, o)
		}
	}
	return g, nil
}

func (m *memStore) SearchOrders(_ context.Context, filter domain.OrderFilter) ([]domain.Order, error) {
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("filter.Validate: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	matches := func(values []string, v string) bool {
		return len(values) == 0 || slices.Contains(values, v)
	}

	var result []domain.Order
	for _, o := range m.orders {
		if len(filter.IDs) > 0 && !slices.Contains(filter.IDs, o.ID) {
			continue
		}
		if len(filter.NoteIDs) > 0 && !slices.Contains(filter.NoteIDs, o.NoteID) {
			continue
		}
		if !matches(filter.BuyerIDs, o.BuyerID) || !matches(filter.SellerIDs, o.SellerID) {
			continue
		}
		if !matches(filter.CheckoutSessionIDs, o.CheckoutSessionID) {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, o.Status) {
			continue
		}
		if r := filter.CreatedAt; r != nil {
			if (r.After != nil && !o.CreatedAt.After(*r.After)) || (r.Before != nil && !o.CreatedAt.Before(*r.Before)) {
				continue
			}
		}
		result = append(result, o)
	}
	return result, nil
}

func (m *memStore) InsertOrders(_ context.Context, orders []domain.Order) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertOrderCalls++
	if m.insertOrdersErrs > 0 {
		m.insertOrdersErrs--
		return nil, errStoreDown
	}

	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		o.ID = uuid.New()
		o.Status = domain.OrderStatusPending
		o.CreatedAt = time.Now()
		m.orders = append(m.orders, o)
		ids = append(ids, o.ID)
	}
	return ids, nil
}

func (m *memStore) CompleteGroup(_ context.Context, sessionID, transferGroup string) ([]domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var payouts []domain.Payout
	for i, o := range m.orders {
		if o.CheckoutSessionID != sessionID || o.Status != domain.OrderStatusPending {
			continue
		}
		m.orders[i].Status = domain.OrderStatusCompleted

		p := domain.Payout{
			ID:                uuid.New(),
			OrderID:           o.ID,
			SellerID:          o.SellerID,
			CheckoutSessionID: o.CheckoutSessionID,
			Amount:            domain.Money{AmountMinor: o.NetMinor(), Currency: o.Price.Currency},
			TransferGroup:     lo.CoalesceOrEmpty(transferGroup, o.TransferGroup),
			Status:            domain.PayoutStatusPending,
			CreatedAt:         time.Now(),
		}
		m.payouts = append(m.payouts, p)
		payouts = append(payouts, p)
	}
	return payouts, nil
}

func (m *memStore) FailGroup(_ context.Context, sessionID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for i, o := range m.orders {
		if o.CheckoutSessionID == sessionID && o.Status == domain.OrderStatusPending {
			m.orders[i].Status = domain.OrderStatusFailed
			n++
		}
	}
	return n, nil
}

func (m *memStore) GetPayoutsBySession(_ context.Context, sessionID string) ([]domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []domain.Payout
	for _, p := range m.payouts {
		if p.CheckoutSessionID == sessionID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *memStore) ListRetryable(_ context.Context, pendingBefore time.Time, maxAttempts int, limit int) ([]domain.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []domain.Payout
	for _, p := range m.payouts {
		if len(result) == limit {
			break
		}
		if p.Attempts >= maxAttempts {
			continue
		}
		if p.Status == domain.PayoutStatusFailed || (p.Status == domain.PayoutStatusPending && p.CreatedAt.Before(pendingBefore)) {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *memStore) MarkSucceeded(ctx context.Context, payoutID uuid.UUID, transferID string) error {
	return m.updatePayout(ctx, payoutID, func(p *domain.Payout) {
		p.Status = domain.PayoutStatusSucceeded
		p.TransferID = transferID
		p.LastError = ""
		p.Attempts++
	})
}

func (m *memStore) MarkFailed(ctx context.Context, payoutID uuid.UUID, lastError string, rotateKey bool) error {
	return m.updatePayout(ctx, payoutID, func(p *domain.Payout) {
		if p.Status != domain.PayoutStatusSucceeded {
			p.Status = domain.PayoutStatusFailed
			if rotateKey {
				p.KeySeq++
			}
		}
		p.LastError = lastError
		p.Attempts++
	})
}

// updatePayout fails on a done context like a pgx query would.
func (m *memStore) updatePayout(ctx context.Context, payoutID uuid.UUID, fn func(p *domain.Payout)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.payouts {
		if m.payouts[i].ID == payoutID {
			fn(&m.payouts[i])
			return nil
		}
	}
	return fmt.Errorf("payout %w", domain.ErrNotFound)
}

func (m *memStore) GetBySellerID(_ context.Context, sellerID string) (domain.PayoutAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[sellerID]
	if !ok {
		return a, fmt.Errorf("payout account %w", domain.ErrNotFound)
	}
	return a, nil
}

func (m *memStore) GetBySellerIDs(_ context.Context, sellerIDs []string) ([]domain.PayoutAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []domain.PayoutAccount
	for _, id := range sellerIDs {
		if a, ok := m.accounts[id]; ok {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *memStore) GetByGatewayAccountID(_ context.Context, gatewayAccountID string) (domain.PayoutAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.accounts {
		if a.GatewayAccountID == gatewayAccountID {
			return a, nil
		}
	}
	return domain.PayoutAccount{}, fmt.Errorf("payout account %w", domain.ErrNotFound)
}

func (m *memStore) UpsertPending(_ context.Context, sellerID, gatewayAccountID string) (domain.PayoutAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.upsertErrs > 0 {
		m.upsertErrs--
		return domain.PayoutAccount{}, errStoreDown
	}

	if a, ok := m.accounts[sellerID]; ok && a.Status == domain.AccountStatusVerified {
		return domain.PayoutAccount{}, fmt.Errorf("payout account is already verified: %w", domain.ErrValidation)
	}

	a := domain.PayoutAccount{SellerID: sellerID, GatewayAccountID: gatewayAccountID, Status: domain.AccountStatusPending}
	m.accounts[sellerID] = a
	return a, nil
}

func (m *memStore) UpdateStatus(_ context.Context, gatewayAccountID string, status domain.AccountStatus) (domain.PayoutAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, a := range m.accounts {
		if a.GatewayAccountID == gatewayAccountID {
			if domain.CanTransition(a.Status, status) {
				a.Status = status
				m.accounts[id] = a
			}
			return a, nil
		}
	}
	return domain.PayoutAccount{}, fmt.Errorf("payout account %w", domain.ErrNotFound)
}

func (m *memStore) addListing(sellerID string, amountMinor int64, unit currency.Unit) domain.Listing {
	l := domain.Listing{
		ID:       uuid.New(),
		SellerID: sellerID,
		Title:    gofakeit.BookTitle(),
		Price:    domain.Money{AmountMinor: amountMinor, Currency: unit},
	}
	m.listings[l.ID] = l
	return l
}

func (m *memStore) addAccount(sellerID string, status domain.AccountStatus) domain.PayoutAccount {
	a := domain.PayoutAccount{SellerID: sellerID, Status: status}
	if status != domain.AccountStatusNone {
		a.GatewayAccountID = "acct_" + gofakeit.LetterN(16)
	}
	m.accounts[sellerID] = a
	return a
}

func (m *memStore) ordersBySession(sessionID string) []domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []domain.Order
	for _, o := range m.orders {
		if o.CheckoutSessionID == sessionID {
			result = append(result, o)
		}
	}
	return result
}

func (m *memStore) allPayouts() []domain.Payout {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Clone(m.payouts)
}

type transferResult struct {
	transfer domain.Transfer
	err      error
}

// fakeGateway records calls. Transfers honour idempotency keys like the real gateway:
// a key that already succeeded or was rejected gets the same answer again.
type fakeGateway struct {
	mu sync.Mutex

	sessions         []domain.CheckoutSessionRequest
	expired          []string
	transfers        map[string]domain.TransferRequest // successful, by idempotency key
	results          map[string]transferResult         // replayed, by idempotency key
	transferKeys     []string                          // every key seen, in call order
	transferCalls    int
	accountsCreated  []domain.ConnectedAccountRequest
	accountLinks     []domain.AccountLinkRequest
	paymentIntents   map[string]domain.PaymentIntent
	flags            map[string]domain.AccountFlags
	sessionErr       error
	expireErr        error
	failDestinations map[string]error // CreateTransfer fails for these accounts
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		transfers:        make(map[string]domain.TransferRequest),
		results:          make(map[string]transferResult),
		paymentIntents:   make(map[string]domain.PaymentIntent),
		flags:            make(map[string]domain.AccountFlags),
		failDestinations: make(map[string]error),
	}
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req domain.CheckoutSessionRequest) (domain.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sessionErr != nil {
		return domain.CheckoutSession{}, g.sessionErr
	}

	g.sessions = append(g.sessions, req)
	id := "cs_test_" + gofakeit.LetterN(24)

	return domain.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.example.com/pay/" + id,
		TransferGroup: req.TransferGroup,
		ExpiresAt:     req.ExpiresAt,
	}, nil
}

func (g *fakeGateway) ExpireCheckoutSession(_ context.Context, sessionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.expireErr != nil {
		return g.expireErr
	}
	g.expired = append(g.expired, sessionID)
	return nil
}

func (g *fakeGateway) RetrievePaymentIntent(_ context.Context, id string) (domain.PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	pi, ok := g.paymentIntents[id]
	if !ok {
		return pi, &domain.GatewayError{Op: "payment_intents.retrieve", StatusCode: 404, Code: "resource_missing", Err: errors.New("no such payment intent")}
	}
	return pi, nil
}

func (g *fakeGateway) CreateTransfer(ctx context.Context, req domain.TransferRequest) (domain.Transfer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.transferCalls++
	g.transferKeys = append(g.transferKeys, req.IdempotencyKey)

	if err := ctx.Err(); err != nil {
		return domain.Transfer{}, &domain.GatewayError{Op: "transfers.create", Err: err}
	}

	if r, ok := g.results[req.IdempotencyKey]; ok {
		return r.transfer, r.err
	}

	if err, ok := g.failDestinations[req.DestinationAccount]; ok {
		// only a definite rejection is stored against the key
		if domain.IsRejected(err) {
			g.results[req.IdempotencyKey] = transferResult{err: err}
		}
		return domain.Transfer{}, err
	}

	t := domain.Transfer{ID: "tr_" + req.IdempotencyKey}
	g.transfers[req.IdempotencyKey] = req
	g.results[req.IdempotencyKey] = transferResult{transfer: t}
	return t, nil
}

func (g *fakeGateway) CreateConnectedAccount(_ context.Context, req domain.ConnectedAccountRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.accountsCreated = append(g.accountsCreated, req)
	return "acct_" + gofakeit.LetterN(16), nil
}

func (g *fakeGateway) CreateAccountLink(_ context.Context, req domain.AccountLinkRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.accountLinks = append(g.accountLinks, req)
	return "https://connect.example.com/setup/" + req.GatewayAccountID, nil
}

func (g *fakeGateway) GetAccountFlags(_ context.Context, gatewayAccountID string) (domain.AccountFlags, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.flags[gatewayAccountID], nil
}

func (g *fakeGateway) ParseEvent(_ []byte, _ string) (domain.GatewayEvent, error) {
	return domain.GatewayEvent{}, errors.New("not implemented")
}

func (g *fakeGateway) keys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return slices.Clone(g.transferKeys)
}

func (g *fakeGateway) transferred() []domain.TransferRequest {
	g.mu.Lock()
	defer g.mu.Unlock()

	result := make([]domain.TransferRequest, 0, len(g.transfers))
	for _, t := range g.transfers {
		result = append(result, t)
	}
	return result
}

type publishedEvent struct {
	Topic string
	Key   string
	Event any
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent

	onPublish func(topic string) // called outside the lock
}

func (p *fakePublisher) PublishEvent(_ context.Context, topic string, key string, event any) error {
	p.mu.Lock()
	p.events = append(p.events, publishedEvent{Topic: topic, Key: key, Event: event})
	hook := p.onPublish
	p.mu.Unlock()

	if hook != nil {
		hook(topic)
	}
	return nil
}

func (p *fakePublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]string, 0, len(p.events))
	for _, e := range p.events {
		result = append(result, e.Topic)
	}
	return result
}
