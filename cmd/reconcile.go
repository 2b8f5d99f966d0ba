package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func reconcileCmd(configPath *string) *cobra.Command {
	var (
		maxAttempts int
		batchSize   int
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Retry seller payouts that failed or never completed",
		Long: `Retry seller payouts that failed or never completed.

Transfers reuse the payout's idempotency key, so running this while a
settlement is in flight or twice in a row never pays a seller twice.
The gateway keeps idempotency keys for 24 hours; run it at least daily.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			opts := a.retryOptions()
			if maxAttempts > 0 {
				opts.MaxAttempts = maxAttempts
			}
			if batchSize > 0 {
				opts.Limit = batchSize
			}

			report, err := a.settlement.RetryPayouts(ctx, opts)
			if err != nil {
				return fmt.Errorf("settlement.RetryPayouts: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "attempted=%d succeeded=%d failed=%d\n",
				report.Attempted, report.Succeeded, len(report.Failures))

			for _, f := range report.Failures {
				fmt.Fprintf(cmd.OutOrStdout(), "payout=%s order=%s seller=%s err=%v\n", f.PayoutID, f.OrderID, f.SellerID, f.Err)
			}

			if len(report.Failures) > 0 {
				return fmt.Errorf("%d payout(s) still failing", len(report.Failures))
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "skip payouts with this many attempts, overrides reconcile.max_attempts")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "payouts per run, overrides reconcile.batch_size")

	return cmd
}
