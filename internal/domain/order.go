package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Order is one purchased listing inside a settlement group.
// Price and SellerID are snapshots of the listing at checkout time.
type Order struct {
	ID                uuid.UUID
	NoteID            uuid.UUID
	BuyerID           string
	SellerID          string
	CheckoutSessionID string
	TransferGroup     string
	Price             Money
	PlatformFeeMinor  int64
	Status            OrderStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NetMinor is the seller's share of the order.
func (o Order) NetMinor() int64 {
	return o.Price.AmountMinor - o.PlatformFeeMinor
}

// SettlementGroup is every order created by one checkout session.
type SettlementGroup struct {
	CheckoutSessionID string
	Orders            []Order
}

func (g SettlementGroup) AllCompleted() bool {
	if len(g.Orders) == 0 {
		return false
	}

	return lo.EveryBy(g.Orders, func(o Order) bool {
		return o.Status == OrderStatusCompleted
	})
}

func (g SettlementGroup) Pending() []Order {
	return lo.Filter(g.Orders, func(o Order, _ int) bool {
		return o.Status == OrderStatusPending
	})
}

func (g SettlementGroup) TransferGroup() string {
	for _, o := range g.Orders {
		if o.TransferGroup != "" {
			return o.TransferGroup
		}
	}
	return ""
}
