// Package service holds the checkout, settlement and payout account workflows.
// Services own no state beyond their dependencies; the ledger store is the
// only coordination point between concurrent requests.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nikolayk812/notemarket/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/nikolayk812/notemarket/internal/service")

// trackOperation starts a span and returns the function that ends it.
func trackOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// RetryPolicy bounds the exponential backoff used around store writes
// and compensating gateway calls.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxElapsedTime  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 200 * time.Millisecond,
		MaxElapsedTime:  5 * time.Second,
	}
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	defaults := DefaultRetryPolicy()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = defaults.InitialInterval
	b.MaxElapsedTime = defaults.MaxElapsedTime
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxElapsedTime > 0 {
		b.MaxElapsedTime = p.MaxElapsedTime
	}
	b.Reset()

	return backoff.WithContext(b, ctx)
}

// retry runs op until it succeeds, returns a permanent error or the policy gives up.
// Validation and not found errors are never retried.
func (p RetryPolicy) retry(ctx context.Context, logger *slog.Logger, op string, fn func() error) error {
	attempt := 0

	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err != nil && (errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound)) {
			return backoff.Permanent(err)
		}
		return err
	}, p.newBackOff(ctx), func(err error, next time.Duration) {
		logger.WarnContext(ctx, "retrying", "op", op, "attempt", attempt, "next_in", next, "err", err)
	})
}

// storeError marks a ledger store failure as ErrPersistence unless it already
// carries a more specific classification.
func storeError(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrValidation) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w: %w", op, domain.ErrPersistence, err)
}

// validateOrigin accepts absolute http(s) URLs without a path, e.g. https://notes.example.com
func validateOrigin(origin string) (string, error) {
	if origin == "" {
		return "", fmt.Errorf("%w: origin is empty", domain.ErrValidation)
	}

	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("%w: origin[%s]: %w", domain.ErrValidation, origin, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: origin[%s] must be http or https", domain.ErrValidation, origin)
	}

	if u.Host == "" {
		return "", fmt.Errorf("%w: origin[%s] has no host", domain.ErrValidation, origin)
	}

	return u.Scheme + "://" + u.Host, nil
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
