package domain

import (
	"fmt"

	"github.com/google/uuid"
)

// Cart is what a buyer asks to pay for. Quantity is always 1 per listing.
type Cart struct {
	BuyerID    string
	ListingIDs []uuid.UUID
}

func (c Cart) Validate() error {
	if c.BuyerID == "" {
		return fmt.Errorf("%w: buyerID is empty", ErrValidation)
	}

	if len(c.ListingIDs) == 0 {
		return fmt.Errorf("%w: cart is empty", ErrValidation)
	}

	seen := make(map[uuid.UUID]struct{}, len(c.ListingIDs))
	for _, id := range c.ListingIDs {
		if id == uuid.Nil {
			return fmt.Errorf("%w: listingID is empty", ErrValidation)
		}

		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate listingID[%s]", ErrValidation, id)
		}
		seen[id] = struct{}{}
	}

	return nil
}
