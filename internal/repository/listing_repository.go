package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/notemarket/internal/db"
	"github.com/nikolayk812/notemarket/internal/domain"
	"github.com/nikolayk812/notemarket/internal/port"
)

type listingRepository struct {
	q *db.Queries
}

func NewListing(pool *pgxpool.Pool) port.ListingRepository {
	return &listingRepository{
		q: db.New(pool),
	}
}

func NewListingWithTx(tx pgx.Tx) port.ListingRepository {
	return &listingRepository{
		q: db.New(tx),
	}
}

func (r *listingRepository) GetListings(ctx context.Context, listingIDs []uuid.UUID) ([]domain.Listing, error) {
	if len(listingIDs) == 0 {
		return nil, nil
	}

	dbListings, err := r.q.GetListings(ctx, listingIDs)
	if err != nil {
		return nil, fmt.Errorf("q.GetListings: %w", err)
	}

	listings := make([]domain.Listing, 0, len(dbListings))
	for _, l := range dbListings {
		listing, err := mapDBListingToDomain(l)
		if err != nil {
			return nil, fmt.Errorf("mapDBListingToDomain: %w", err)
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

func (r *listingRepository) InsertListing(ctx context.Context, listing domain.Listing) (uuid.UUID, error) {
	if err := listing.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("listing.Validate: %w", err)
	}

	id, err := r.q.InsertListing(ctx, db.InsertListingParams{
		SellerID:   listing.SellerID,
		Title:      listing.Title,
		PriceMinor: listing.Price.AmountMinor,
		Currency:   listing.Price.Currency.String(),
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("q.InsertListing: %w", err)
	}

	return id, nil
}

func mapDBListingToDomain(l db.Listing) (domain.Listing, error) {
	parsedCurrency, err := domain.ParseCurrency(l.Currency)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("domain.ParseCurrency: %w", err)
	}

	return domain.Listing{
		ID:        l.ID,
		SellerID:  l.SellerID,
		Title:     l.Title,
		Price:     domain.Money{AmountMinor: l.PriceMinor, Currency: parsedCurrency},
		CreatedAt: l.CreatedAt,
	}, nil
}
