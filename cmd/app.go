package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/notemarket/internal/config"
	"github.com/nikolayk812/notemarket/internal/gateway"
	"github.com/nikolayk812/notemarket/internal/messaging"
	"github.com/nikolayk812/notemarket/internal/messaging/kafka"
	"github.com/nikolayk812/notemarket/internal/port"
	"github.com/nikolayk812/notemarket/internal/repository"
	"github.com/nikolayk812/notemarket/internal/service"
)

// app holds everything a command needs; close releases it.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	pool   *pgxpool.Pool

	gateway    port.PaymentGateway
	publisher  port.EventPublisher
	checkout   *service.CheckoutService
	accounts   *service.PayoutAccountService
	settlement *service.SettlementService
	orders     *service.OrderQueryService

	closers []func() error
}

func loadConfig(configPath string) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("config.Load: %w", err)
	}

	logger, err := cfg.Log.NewLogger(os.Stdout)
	if err != nil {
		return cfg, nil, fmt.Errorf("cfg.Log.NewLogger: %w", err)
	}
	slog.SetDefault(logger)

	return cfg, logger, nil
}

func connect(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pool.Ping: %w", err)
	}

	return pool, nil
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.ValidateStripe(); err != nil {
		return nil, fmt.Errorf("cfg.ValidateStripe: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	a.pool, err = connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		a.pool.Close()
		return nil
	})

	a.gateway, err = gateway.NewStripe(gateway.Config{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("gateway.NewStripe: %w", err)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("kafka.NewPublisher: %w", err)
		}
		a.publisher = publisher
		a.closers = append(a.closers, publisher.Close)
	} else {
		logger.Warn("kafka.brokers is empty, settlement events are only logged")
		a.publisher = messaging.NewLogPublisher(logger)
	}

	feeRate, err := cfg.Checkout.ParseFeeRate()
	if err != nil {
		a.close()
		return nil, fmt.Errorf("cfg.Checkout.ParseFeeRate: %w", err)
	}

	listings := repository.NewListing(a.pool)
	orders := repository.NewOrder(a.pool)
	payouts := repository.NewPayout(a.pool)
	payoutAccounts := repository.NewPayoutAccount(a.pool)

	retry := service.RetryPolicy{MaxElapsedTime: cfg.Checkout.OrderInsertMaxElapsed}

	a.checkout, err = service.NewCheckout(listings, payoutAccounts, orders, a.gateway, service.CheckoutConfig{
		FeeRate:    feeRate,
		SessionTTL: cfg.Checkout.SessionTTL,
		Retry:      retry,
	}, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("service.NewCheckout: %w", err)
	}

	a.accounts, err = service.NewPayoutAccount(payoutAccounts, a.gateway, service.PayoutAccountConfig{
		Country: cfg.Connect.Country,
		Retry:   retry,
	}, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("service.NewPayoutAccount: %w", err)
	}

	a.settlement, err = service.NewSettlement(orders, payouts, payoutAccounts, a.accounts, a.gateway, a.publisher, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("service.NewSettlement: %w", err)
	}

	a.orders, err = service.NewOrderQuery(orders, payouts, logger)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("service.NewOrderQuery: %w", err)
	}

	return a, nil
}

func (a *app) retryOptions() service.RetryOptions {
	return service.RetryOptions{
		GracePeriod: a.cfg.Reconcile.GracePeriod,
		MaxAttempts: a.cfg.Reconcile.MaxAttempts,
		Limit:       a.cfg.Reconcile.BatchSize,
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("close failed", "err", err)
		}
	}
}
