package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikolayk812/notemarket/internal/domain"
)

type ListingRepository interface {
	// GetListings returns the listings found, in no particular order. Missing ids are not an error.
	GetListings(ctx context.Context, listingIDs []uuid.UUID) ([]domain.Listing, error)

	InsertListing(ctx context.Context, listing domain.Listing) (uuid.UUID, error)
}
