// Package gateway adapts Stripe Checkout and Connect to port.PaymentGateway.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/port"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

type Config struct {
	SecretKey     string
	WebhookSecret string
	// Backends overrides the Stripe endpoints, nil means the live API.
	Backends *stripe.Backends
}

type stripeGateway struct {
	api           *client.API
	webhookSecret string
	logger        *slog.Logger
}

func NewStripe(cfg Config, logger *slog.Logger) (port.PaymentGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key is empty")
	}

	if cfg.WebhookSecret == "" {
		return nil, errors.New("webhook secret is empty")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &stripeGateway{
		api:           client.New(cfg.SecretKey, cfg.Backends),
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}, nil
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, req domain.CheckoutSessionRequest) (domain.CheckoutSession, error) {
	var s domain.CheckoutSession

	if len(req.LineItems) == 0 {
		return s, &domain.GatewayError{Op: "checkout.sessions.create", Err: errors.New("no line items")}
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, item := range req.LineItems {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(stripeCurrency(item.UnitAmount)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(item.UnitAmount.AmountMinor),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		ClientReferenceID:  stripe.String(req.BuyerID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			TransferGroup: stripe.String(req.TransferGroup),
		},
	}
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return s, mapError("checkout.sessions.create", err)
	}

	return domain.CheckoutSession{
		ID:            session.ID,
		URL:           session.URL,
		TransferGroup: req.TransferGroup,
		ExpiresAt:     req.ExpiresAt,
	}, nil
}

func (g *stripeGateway) ExpireCheckoutSession(ctx context.Context, checkoutSessionID string) error {
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx

	if _, err := g.api.CheckoutSessions.Expire(checkoutSessionID, params); err != nil {
		return mapError("checkout.sessions.expire", err)
	}

	return nil
}

func (g *stripeGateway) RetrievePaymentIntent(ctx context.Context, paymentIntentID string) (domain.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		return domain.PaymentIntent{}, mapError("payment_intents.retrieve", err)
	}

	return domain.PaymentIntent{
		ID:            pi.ID,
		TransferGroup: pi.TransferGroup,
		Status:        string(pi.Status),
	}, nil
}

func (g *stripeGateway) CreateTransfer(ctx context.Context, req domain.TransferRequest) (domain.Transfer, error) {
	params := &stripe.TransferParams{
		Amount:        stripe.Int64(req.Amount.AmountMinor),
		Currency:      stripe.String(stripeCurrency(req.Amount)),
		Destination:   stripe.String(req.DestinationAccount),
		TransferGroup: stripe.String(req.TransferGroup),
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	t, err := g.api.Transfers.New(params)
	if err != nil {
		return domain.Transfer{}, mapError("transfers.create", err)
	}

	return domain.Transfer{ID: t.ID}, nil
}

func (g *stripeGateway) CreateConnectedAccount(ctx context.Context, req domain.ConnectedAccountRequest) (string, error) {
	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(req.Country),
		Email:   stripe.String(req.Email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
		BusinessType: stripe.String(string(stripe.AccountBusinessTypeIndividual)),
		Settings: &stripe.AccountSettingsParams{
			Payouts: &stripe.AccountSettingsPayoutsParams{
				Schedule: &stripe.AccountSettingsPayoutsScheduleParams{
					Interval: stripe.String("manual"),
				},
			},
		},
	}
	params.AddMetadata("seller_id", req.SellerID)
	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	account, err := g.api.Accounts.New(params)
	if err != nil {
		return "", mapError("accounts.create", err)
	}

	return account.ID, nil
}

func (g *stripeGateway) CreateAccountLink(ctx context.Context, req domain.AccountLinkRequest) (string, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(req.GatewayAccountID),
		RefreshURL: stripe.String(req.RefreshURL),
		ReturnURL:  stripe.String(req.ReturnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := g.api.AccountLinks.New(params)
	if err != nil {
		return "", mapError("account_links.create", err)
	}

	return link.URL, nil
}

func (g *stripeGateway) GetAccountFlags(ctx context.Context, gatewayAccountID string) (domain.AccountFlags, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	account, err := g.api.Accounts.GetByID(gatewayAccountID, params)
	if err != nil {
		return domain.AccountFlags{}, mapError("accounts.retrieve", err)
	}

	return domain.AccountFlags{
		ChargesEnabled:   account.ChargesEnabled,
		PayoutsEnabled:   account.PayoutsEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
	}, nil
}

// stripeCurrency renders the ISO code the way the Stripe API expects it.
func stripeCurrency(m domain.Money) string {
	return strings.ToLower(m.Currency.String())
}

func mapError(op string, err error) error {
	gwErr := &domain.GatewayError{Op: op, Err: err}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		gwErr.StatusCode = stripeErr.HTTPStatusCode
		gwErr.Code = string(stripeErr.Code)
		gwErr.Err = fmt.Errorf("%s: %s", stripeErr.Type, stripeErr.Msg)
	}

	return gwErr
}
