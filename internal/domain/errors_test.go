package domain_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestGatewayError(t *testing.T) {
	cause := errors.New("card_error: no such destination")

	tests := []struct {
		name          string
		err           *domain.GatewayError
		wantMessage   string
		wantRetryable bool
	}{
		{
			name:          "no response",
			err:           &domain.GatewayError{Op: "transfers.create", Err: context.DeadlineExceeded},
			wantMessage:   "gateway transfers.create: context deadline exceeded",
			wantRetryable: true,
		},
		{
			name:          "rate limited",
			err:           &domain.GatewayError{Op: "transfers.create", StatusCode: http.StatusTooManyRequests, Err: cause},
			wantMessage:   "gateway transfers.create: status 429: card_error: no such destination",
			wantRetryable: true,
		},
		{
			name:          "idempotent request in flight",
			err:           &domain.GatewayError{Op: "transfers.create", StatusCode: http.StatusConflict, Err: cause},
			wantMessage:   "gateway transfers.create: status 409: card_error: no such destination",
			wantRetryable: true,
		},
		{
			name:          "server error",
			err:           &domain.GatewayError{Op: "transfers.create", StatusCode: http.StatusBadGateway, Err: cause},
			wantMessage:   "gateway transfers.create: status 502: card_error: no such destination",
			wantRetryable: true,
		},
		{
			name:          "caller fault with code",
			err:           &domain.GatewayError{Op: "transfers.create", StatusCode: http.StatusBadRequest, Code: "resource_missing", Err: cause},
			wantMessage:   "gateway transfers.create: status 400 resource_missing: card_error: no such destination",
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMessage, tt.err.Error())
			assert.Equal(t, tt.wantRetryable, tt.err.Retryable())
			assert.Equal(t, tt.wantRetryable, domain.IsRetryable(fmt.Errorf("wrapped: %w", tt.err)))
		})
	}
}

func TestIsRejected(t *testing.T) {
	cause := errors.New("balance_insufficient")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "not a gateway error", err: domain.ErrSellerNotPayable, want: false},
		{name: "no response", err: &domain.GatewayError{Op: "transfers.create", Err: context.Canceled}, want: false},
		{name: "server error", err: &domain.GatewayError{Op: "transfers.create", StatusCode: http.StatusInternalServerError, Err: cause}, want: false},
		{name: "in flight", err: &domain.GatewayError{Op: "transfers.create", StatusCode: http.StatusConflict, Err: cause}, want: false},
		{name: "bad request", err: &domain.GatewayError{Op: "transfers.create", StatusCode: http.StatusBadRequest, Err: cause}, want: true},
		{
			name: "wrapped bad request",
			err:  fmt.Errorf("gateway.CreateTransfer: %w", &domain.GatewayError{Op: "transfers.create", StatusCode: http.StatusBadRequest, Err: cause}),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.IsRejected(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	partial := &domain.PartialSettlementFailure{
		CheckoutSessionID: "cs_test_1",
		Failures: []domain.PayoutFailure{
			{PayoutID: uuid.New(), SellerID: "seller-1", Err: &domain.GatewayError{Op: "transfers.create"}},
		},
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "persistence", err: fmt.Errorf("orders.InsertOrders: %w", domain.ErrPersistence), want: true},
		{name: "orders not visible", err: fmt.Errorf("session[cs_1]: %w", domain.ErrOrdersNotVisible), want: true},
		{name: "validation", err: fmt.Errorf("%w: cart is empty", domain.ErrValidation), want: false},
		{name: "not found", err: domain.ErrNotFound, want: false},
		{name: "partial settlement", err: partial, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.IsRetryable(tt.err))
		})
	}
}

func TestPartialSettlementFailure(t *testing.T) {
	first := errors.New("first")
	second := errors.New("second")

	err := &domain.PartialSettlementFailure{
		CheckoutSessionID: "cs_test_1",
		Failures: []domain.PayoutFailure{
			{SellerID: "seller-1", Err: first},
			{SellerID: "seller-2", Err: second},
		},
	}

	assert.Equal(t, "settlement cs_test_1: 2 payout(s) failed for sellers [seller-1,seller-2]", err.Error())
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}
