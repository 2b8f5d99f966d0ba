package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrSellerNotPayable = errors.New("seller is not payable")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrPersistence      = errors.New("persistence failed")
	// ErrOrdersNotVisible means a gateway event arrived before the checkout write committed.
	ErrOrdersNotVisible = errors.New("orders not visible yet")
)

// GatewayError is a failed call to the payment gateway.
type GatewayError struct {
	Op         string
	StatusCode int    // 0 when no response was received
	Code       string // gateway specific error code, may be empty
	Err        error
}

func (e *GatewayError) Error() string {
	switch {
	case e.StatusCode == 0:
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	case e.Code == "":
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("gateway %s: status %d %s: %v", e.Op, e.StatusCode, e.Code, e.Err)
	}
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Retryable is true for transient failures: no response, rate limiting or 5xx.
// Any other 4xx is a caller fault and will fail the same way again.
func (e *GatewayError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode == http.StatusConflict:
		// concurrent idempotent request still in flight
		return true
	case e.StatusCode >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

// IsRejected reports whether the gateway answered and refused the request.
// Repeating it with the same idempotency key replays the same refusal.
func IsRejected(err error) bool {
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		return false
	}

	return gwErr.StatusCode != 0 && !gwErr.Retryable()
}

// PayoutFailure is one seller transfer that did not go through.
type PayoutFailure struct {
	PayoutID uuid.UUID
	OrderID  uuid.UUID
	SellerID string
	Err      error
}

// PartialSettlementFailure reports payouts that need a retry after the
// group itself was settled. It is not fatal for the buyer.
type PartialSettlementFailure struct {
	CheckoutSessionID string
	Failures          []PayoutFailure
}

func (e *PartialSettlementFailure) Error() string {
	sellers := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		sellers = append(sellers, f.SellerID)
	}
	return fmt.Sprintf("settlement %s: %d payout(s) failed for sellers [%s]",
		e.CheckoutSessionID, len(e.Failures), strings.Join(sellers, ","))
}

func (e *PartialSettlementFailure) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// IsRetryable reports whether repeating the same request may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// settled groups are retried through reconciliation, never by redelivery
	var partial *PartialSettlementFailure
	if errors.As(err, &partial) {
		return false
	}

	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Retryable()
	}

	return errors.Is(err, ErrPersistence) || errors.Is(err, ErrOrdersNotVisible)
}
