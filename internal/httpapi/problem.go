package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/nikolayk812/notemarket/internal/domain"
)

// Problem is an RFC 7807 problem detail.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// Code is stable across releases, clients branch on it instead of Title.
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
	RequestID string `json:"request_id,omitempty"`
}

type problemKind struct {
	status int
	title  string
	code   string
}

var (
	kindValidation       = problemKind{http.StatusBadRequest, "Bad Request", "validation_error"}
	kindInvalidSignature = problemKind{http.StatusBadRequest, "Bad Request", "invalid_signature"}
	kindNotFound         = problemKind{http.StatusNotFound, "Not Found", "not_found"}
	kindSellerNotPayable = problemKind{http.StatusConflict, "Conflict", "seller_not_payable"}
	kindGatewayRejected  = problemKind{http.StatusBadGateway, "Bad Gateway", "gateway_error"}
	kindGatewayDown      = problemKind{http.StatusServiceUnavailable, "Service Unavailable", "gateway_unavailable"}
	kindPersistence      = problemKind{http.StatusServiceUnavailable, "Service Unavailable", "persistence_error"}
	kindNotVisible       = problemKind{http.StatusServiceUnavailable, "Service Unavailable", "orders_not_visible"}
	kindRateLimited      = problemKind{http.StatusTooManyRequests, "Too Many Requests", "rate_limited"}
	kindInternal         = problemKind{http.StatusInternalServerError, "Internal Server Error", "internal_error"}
)

func classify(err error) problemKind {
	var gwErr *domain.GatewayError

	switch {
	case errors.Is(err, domain.ErrInvalidSignature):
		return kindInvalidSignature
	case errors.Is(err, domain.ErrValidation):
		return kindValidation
	case errors.Is(err, domain.ErrNotFound):
		return kindNotFound
	case errors.Is(err, domain.ErrSellerNotPayable):
		return kindSellerNotPayable
	case errors.Is(err, domain.ErrOrdersNotVisible):
		return kindNotVisible
	case errors.Is(err, domain.ErrPersistence):
		return kindPersistence
	case errors.As(err, &gwErr):
		if gwErr.Retryable() {
			return kindGatewayDown
		}
		return kindGatewayRejected
	default:
		return kindInternal
	}
}

// writeError maps err to a problem response. Details of internal and gateway
// errors are logged, never sent to the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := classify(err)

	detail := err.Error()
	switch kind {
	case kindInternal, kindGatewayRejected, kindGatewayDown, kindPersistence:
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "code", kind.code, "err", err)
		detail = ""
	default:
		logger.InfoContext(r.Context(), "request rejected", "path", r.URL.Path, "code", kind.code, "err", err)
	}

	retryable := domain.IsRetryable(err)
	if retryable {
		w.Header().Set("Retry-After", "5")
	}

	writeProblem(w, r, kind, detail, retryable)
}

func writeProblem(w http.ResponseWriter, r *http.Request, kind problemKind, detail string, retryable bool) {
	problem := Problem{
		Type:      "about:blank",
		Title:     kind.title,
		Status:    kind.status,
		Detail:    detail,
		Instance:  r.URL.Path,
		Code:      kind.code,
		Retryable: retryable,
		RequestID: middleware.GetReqID(r.Context()),
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(kind.status)
	_ = json.NewEncoder(w).Encode(problem)
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfter int) {
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeProblem(w, r, kindRateLimited, "rate limit exceeded", true)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
