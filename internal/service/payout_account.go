package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/port"
	"go.opentelemetry.io/otel/attribute"
)

type PayoutAccountConfig struct {
	// Country of newly created connected accounts, ISO 3166-1 alpha-2.
	Country string
	Retry   RetryPolicy
}

type PayoutAccountService struct {
	accounts port.PayoutAccountRepository
	gateway  port.PaymentGateway
	cfg      PayoutAccountConfig
	logger   *slog.Logger
}

func NewPayoutAccount(accounts port.PayoutAccountRepository, gateway port.PaymentGateway, cfg PayoutAccountConfig, logger *slog.Logger) (*PayoutAccountService, error) {
	if accounts == nil || gateway == nil {
		return nil, errors.New("dependencies must not be nil")
	}

	if len(cfg.Country) != 2 {
		return nil, fmt.Errorf("country[%s] must be a two letter code", cfg.Country)
	}

	return &PayoutAccountService{
		accounts: accounts,
		gateway:  gateway,
		cfg:      cfg,
		logger:   loggerOrDefault(logger),
	}, nil
}

// BeginOnboarding creates a connected account for the seller and records it as pending.
// A seller who already has a pending account gets the same account back.
func (s *PayoutAccountService) BeginOnboarding(ctx context.Context, sellerID, email string) (_ domain.PayoutAccount, err error) {
	ctx, done := trackOperation(ctx, "PayoutAccountService.BeginOnboarding", attribute.String("seller_id", sellerID))
	defer func() { done(err) }()

	var a domain.PayoutAccount

	if sellerID == "" {
		return a, fmt.Errorf("%w: sellerID is empty", domain.ErrValidation)
	}

	if email == "" {
		return a, fmt.Errorf("%w: email is empty", domain.ErrValidation)
	}

	existing, err := s.accounts.GetBySellerID(ctx, sellerID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return a, storeError("accounts.GetBySellerID", err)
	case existing.Status == domain.AccountStatusVerified:
		return a, fmt.Errorf("%w: seller[%s] is already verified", domain.ErrValidation, sellerID)
	case existing.GatewayAccountID != "":
		return existing, nil
	}

	gatewayAccountID, err := s.gateway.CreateConnectedAccount(ctx, domain.ConnectedAccountRequest{
		SellerID:       sellerID,
		Email:          email,
		Country:        s.cfg.Country,
		IdempotencyKey: "account-" + sellerID,
	})
	if err != nil {
		return a, fmt.Errorf("gateway.CreateConnectedAccount: %w", err)
	}

	err = s.cfg.Retry.retry(ctx, s.logger, "accounts.UpsertPending", func() error {
		account, err := s.accounts.UpsertPending(ctx, sellerID, gatewayAccountID)
		if err != nil {
			return err
		}
		a = account
		return nil
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "orphaned connected account",
			"seller_id", sellerID,
			"gateway_account_id", gatewayAccountID,
			"err", err)
		return domain.PayoutAccount{}, storeError("accounts.UpsertPending", err)
	}

	s.logger.InfoContext(ctx, "onboarding started", "seller_id", sellerID, "gateway_account_id", gatewayAccountID)

	return a, nil
}

// CreateOnboardingLink returns a single use URL of the gateway hosted onboarding flow.
func (s *PayoutAccountService) CreateOnboardingLink(ctx context.Context, gatewayAccountID, origin string) (_ string, err error) {
	ctx, done := trackOperation(ctx, "PayoutAccountService.CreateOnboardingLink", attribute.String("gateway_account_id", gatewayAccountID))
	defer func() { done(err) }()

	if gatewayAccountID == "" {
		return "", fmt.Errorf("%w: gatewayAccountID is empty", domain.ErrValidation)
	}

	origin, err = validateOrigin(origin)
	if err != nil {
		return "", fmt.Errorf("validateOrigin: %w", err)
	}

	link, err := s.gateway.CreateAccountLink(ctx, domain.AccountLinkRequest{
		GatewayAccountID: gatewayAccountID,
		RefreshURL:       origin + "/dashboard?refresh=true",
		ReturnURL:        origin + "/dashboard?setup=success",
	})
	if err != nil {
		return "", fmt.Errorf("gateway.CreateAccountLink: %w", err)
	}

	return link, nil
}

// CheckStatus pulls the verification flags from the gateway and stores the derived status.
func (s *PayoutAccountService) CheckStatus(ctx context.Context, gatewayAccountID string) (_ domain.AccountStatus, err error) {
	ctx, done := trackOperation(ctx, "PayoutAccountService.CheckStatus", attribute.String("gateway_account_id", gatewayAccountID))
	defer func() { done(err) }()

	if gatewayAccountID == "" {
		return "", fmt.Errorf("%w: gatewayAccountID is empty", domain.ErrValidation)
	}

	if _, err := s.accounts.GetByGatewayAccountID(ctx, gatewayAccountID); err != nil {
		return "", storeError("accounts.GetByGatewayAccountID", err)
	}

	flags, err := s.gateway.GetAccountFlags(ctx, gatewayAccountID)
	if err != nil {
		return "", fmt.Errorf("gateway.GetAccountFlags: %w", err)
	}

	return s.ApplyAccountFlags(ctx, gatewayAccountID, flags)
}

// ApplyAccountFlags moves the stored status forward to what the flags imply.
// A verified account stays verified whatever the flags say.
func (s *PayoutAccountService) ApplyAccountFlags(ctx context.Context, gatewayAccountID string, flags domain.AccountFlags) (domain.AccountStatus, error) {
	if gatewayAccountID == "" {
		return "", fmt.Errorf("%w: gatewayAccountID is empty", domain.ErrValidation)
	}

	current, err := s.accounts.GetByGatewayAccountID(ctx, gatewayAccountID)
	if err != nil {
		return "", storeError("accounts.GetByGatewayAccountID", err)
	}

	target := flags.Status()
	if current.Status == target || !domain.CanTransition(current.Status, target) {
		return current.Status, nil
	}

	updated, err := s.accounts.UpdateStatus(ctx, gatewayAccountID, target)
	if err != nil {
		return "", storeError("accounts.UpdateStatus", err)
	}

	s.logger.InfoContext(ctx, "payout account status changed",
		"seller_id", updated.SellerID,
		"gateway_account_id", gatewayAccountID,
		"from", current.Status,
		"to", updated.Status)

	return updated.Status, nil
}
