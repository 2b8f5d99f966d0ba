package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Listing is a note offered for sale. It is owned by the storefront and only read here.
type Listing struct {
	ID       uuid.UUID
	SellerID string
	Title    string
	Price    Money

	CreatedAt time.Time
}

func (l Listing) Validate() error {
	if l.SellerID == "" {
		return errors.New("sellerID is empty")
	}

	if l.Title == "" {
		return errors.New("title is empty")
	}

	if err := l.Price.Validate(); err != nil {
		return fmt.Errorf("price: %w", err)
	}

	return nil
}
