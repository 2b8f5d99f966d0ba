package httpapi

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/service"
	"github.com/samber/lo"
)

type orderResponse struct {
	ID                string    `json:"id"`
	NoteID            string    `json:"note_id"`
	BuyerID           string    `json:"buyer_id"`
	SellerID          string    `json:"seller_id"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	Status            string    `json:"status"`
	PriceMinor        int64     `json:"price_minor"`
	Currency          string    `json:"currency"`
	PlatformFeeMinor  int64     `json:"platform_fee_minor"`
	CreatedAt         time.Time `json:"created_at"`
}

type payoutResponse struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	SellerID    string `json:"seller_id"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	TransferID  string `json:"transfer_id,omitempty"`
	Attempts    int    `json:"attempts"`
}

type ordersResponse struct {
	Orders []orderResponse `json:"orders"`
}

type checkoutStatusResponse struct {
	CheckoutSessionID  string           `json:"checkout_session_id"`
	Status             string           `json:"status"`
	Orders             []orderResponse  `json:"orders"`
	Payouts            []payoutResponse `json:"payouts"`
	PayoutsOutstanding int              `json:"payouts_outstanding"`
}

func (h *handler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeError(w, r, h.logger, fmt.Errorf("%w: orderID: %w", domain.ErrValidation, err))
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order, 0))
}

// searchOrders takes repeated query parameters, e.g. ?buyer_id=b1&status=completed&status=pending
func (h *handler) searchOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOrderFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	orders, err := h.orders.SearchOrders(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ordersResponse{Orders: lo.Map(orders, toOrderResponse)})
}

func (h *handler) checkoutStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.orders.CheckoutStatus(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toCheckoutStatusResponse(status))
}

func parseOrderFilter(q url.Values) (domain.OrderFilter, error) {
	var (
		filter domain.OrderFilter
		err    error
	)

	filter.IDs, err = parseUUIDs(q["id"])
	if err != nil {
		return filter, fmt.Errorf("%w: id: %w", domain.ErrValidation, err)
	}

	filter.NoteIDs, err = parseUUIDs(q["note_id"])
	if err != nil {
		return filter, fmt.Errorf("%w: note_id: %w", domain.ErrValidation, err)
	}

	filter.BuyerIDs = q["buyer_id"]
	filter.SellerIDs = q["seller_id"]
	filter.CheckoutSessionIDs = q["session_id"]
	filter.Statuses = lo.Map(q["status"], func(s string, _ int) domain.OrderStatus {
		return domain.OrderStatus(s)
	})

	after, err := parseTime(q.Get("created_after"))
	if err != nil {
		return filter, fmt.Errorf("%w: created_after: %w", domain.ErrValidation, err)
	}

	before, err := parseTime(q.Get("created_before"))
	if err != nil {
		return filter, fmt.Errorf("%w: created_before: %w", domain.ErrValidation, err)
	}

	if after != nil || before != nil {
		filter.CreatedAt = &domain.TimeRange{After: after, Before: before}
	}

	return filter, nil
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))

	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("uuid.Parse[%s]: %w", v, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

func toOrderResponse(o domain.Order, _ int) orderResponse {
	return orderResponse{
		ID:                o.ID.String(),
		NoteID:            o.NoteID.String(),
		BuyerID:           o.BuyerID,
		SellerID:          o.SellerID,
		CheckoutSessionID: o.CheckoutSessionID,
		Status:            string(o.Status),
		PriceMinor:        o.Price.AmountMinor,
		Currency:          o.Price.Currency.String(),
		PlatformFeeMinor:  o.PlatformFeeMinor,
		CreatedAt:         o.CreatedAt,
	}
}

func toCheckoutStatusResponse(s service.CheckoutStatus) checkoutStatusResponse {
	return checkoutStatusResponse{
		CheckoutSessionID: s.CheckoutSessionID,
		Status:            string(s.Status),
		Orders:            lo.Map(s.Orders, toOrderResponse),
		Payouts: lo.Map(s.Payouts, func(p domain.Payout, _ int) payoutResponse {
			return payoutResponse{
				ID:          p.ID.String(),
				OrderID:     p.OrderID.String(),
				SellerID:    p.SellerID,
				AmountMinor: p.Amount.AmountMinor,
				Currency:    p.Amount.Currency.String(),
				Status:      string(p.Status),
				TransferID:  p.TransferID,
				Attempts:    p.Attempts,
			}
		}),
		PayoutsOutstanding: s.PayoutsOutstanding,
	}
}
