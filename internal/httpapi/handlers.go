package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikolayk812/notemarket/internal/domain"
)

const (
	maxBodyBytes    = 64 << 10
	signatureHeader = "Stripe-Signature"
)

type checkoutRequest struct {
	BuyerID    string      `json:"buyer_id"`
	ListingIDs []uuid.UUID `json:"listing_ids"`
	// Origin falls back to the Origin header.
	Origin string `json:"origin"`
}

type checkoutResponse struct {
	CheckoutSessionID string `json:"checkout_session_id"`
	URL               string `json:"url"`
	TransferGroup     string `json:"transfer_group"`
}

type onboardingRequest struct {
	SellerID string `json:"seller_id"`
	Email    string `json:"email"`
}

type payoutAccountResponse struct {
	SellerID         string `json:"seller_id"`
	GatewayAccountID string `json:"gateway_account_id"`
	Status           string `json:"status"`
}

type linkRequest struct {
	Origin string `json:"origin"`
}

type linkResponse struct {
	URL string `json:"url"`
}

type statusResponse struct {
	GatewayAccountID string `json:"gateway_account_id"`
	Status           string `json:"status"`
}

type payoutFailureResponse struct {
	PayoutID string `json:"payout_id"`
	OrderID  string `json:"order_id"`
	SellerID string `json:"seller_id"`
}

type webhookResponse struct {
	Received          bool                    `json:"received"`
	EventType         string                  `json:"event_type,omitempty"`
	CheckoutSessionID string                  `json:"checkout_session_id,omitempty"`
	AlreadySettled    bool                    `json:"already_settled,omitempty"`
	Ignored           bool                    `json:"ignored,omitempty"`
	FailedPayouts     []payoutFailureResponse `json:"failed_payouts,omitempty"`
}

func (h *handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	origin := req.Origin
	if origin == "" {
		origin = r.Header.Get("Origin")
	}

	session, err := h.checkout.CreateCheckout(r.Context(), domain.Cart{
		BuyerID:    req.BuyerID,
		ListingIDs: req.ListingIDs,
	}, origin)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		CheckoutSessionID: session.ID,
		URL:               session.URL,
		TransferGroup:     session.TransferGroup,
	})
}

// stripeWebhook acknowledges with 2xx only when the event needs no redelivery.
// Any other status makes the gateway deliver the event again.
func (h *handler) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: read body: %w", domain.ErrValidation, err))
		return
	}

	ev, err := h.events.ParseEvent(payload, r.Header.Get(signatureHeader))
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("events.ParseEvent: %w", err))
		return
	}

	result, err := h.settlement.HandleEvent(r.Context(), ev)

	resp := webhookResponse{
		Received:          true,
		EventType:         ev.RawType,
		CheckoutSessionID: result.CheckoutSessionID,
		AlreadySettled:    result.AlreadySettled,
		Ignored:           result.Ignored,
	}

	var partial *domain.PartialSettlementFailure
	switch {
	case err == nil:
	case errors.As(err, &partial):
		// the buyer's payment is settled, sellers still owed are retried by reconciliation
		h.logger.WarnContext(r.Context(), "settlement needs reconciliation",
			"event_id", ev.ID,
			"checkout_session_id", partial.CheckoutSessionID,
			"err", err)
		for _, f := range partial.Failures {
			resp.FailedPayouts = append(resp.FailedPayouts, payoutFailureResponse{
				PayoutID: f.PayoutID.String(),
				OrderID:  f.OrderID.String(),
				SellerID: f.SellerID,
			})
		}
	default:
		writeError(w, r, h.logger, fmt.Errorf("settlement.HandleEvent[%s]: %w", ev.ID, err))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) beginOnboarding(w http.ResponseWriter, r *http.Request) {
	var req onboardingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	account, err := h.accounts.BeginOnboarding(r.Context(), req.SellerID, req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, payoutAccountResponse{
		SellerID:         account.SellerID,
		GatewayAccountID: account.GatewayAccountID,
		Status:           string(account.Status),
	})
}

func (h *handler) createOnboardingLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	origin := req.Origin
	if origin == "" {
		origin = r.Header.Get("Origin")
	}

	link, err := h.accounts.CreateOnboardingLink(r.Context(), chi.URLParam(r, "accountID"), origin)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, linkResponse{URL: link})
}

func (h *handler) checkStatus(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")

	status, err := h.accounts.CheckStatus(r.Context(), accountID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{GatewayAccountID: accountID, Status: string(status)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid json body: %w", domain.ErrValidation, err)
	}

	return nil
}
