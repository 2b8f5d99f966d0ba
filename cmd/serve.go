package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nikolayk812/notemarket/internal/httpapi"
	"github.com/spf13/cobra"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the checkout, order, onboarding and webhook HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			router := httpapi.NewRouter(httpapi.Deps{
				Checkout:    a.checkout,
				Settlement:  a.settlement,
				Events:      a.gateway,
				Accounts:    a.accounts,
				Orders:      a.orders,
				RateLimiter: httpapi.NewRateLimiter(a.cfg.HTTP.RateLimitRPS, a.cfg.HTTP.RateLimitBurst),
				Logger:      a.logger,
			})

			srv := &http.Server{
				Addr:              a.cfg.HTTP.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}

			loopCtx, stopLoop := context.WithCancel(ctx)
			defer stopLoop()

			reconcileDone := make(chan struct{})
			go func() {
				defer close(reconcileDone)
				a.reconcileLoop(loopCtx)
			}()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("http server listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("srv.ListenAndServe: %w", err)
				}
			}

			a.logger.Info("shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("srv.Shutdown: %w", err)
			}

			stopLoop()
			<-reconcileDone

			return nil
		},
	}
}

// reconcileLoop retries payouts every reconcile.interval until ctx is done.
func (a *app) reconcileLoop(ctx context.Context) {
	if a.cfg.Reconcile.Interval <= 0 {
		return
	}

	ticker := time.NewTicker(a.cfg.Reconcile.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := a.settlement.RetryPayouts(ctx, a.retryOptions()); err != nil {
				a.logger.ErrorContext(ctx, "payout retry failed", "err", err)
			}
		}
	}
}
