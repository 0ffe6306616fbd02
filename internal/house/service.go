package house

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/mls"
)

// Lookuper resolves an address to a listing.
type Lookuper interface {
	Lookup(ctx context.Context, address string) (*mls.Listing, error)
}

// Service provides house business logic.
type Service struct {
	repo   *Repository
	lookup Lookuper
	now    func() time.Time
}

// NewService creates a house service. lookup may be nil, in which case
// only manual adds are possible.
func NewService(repo *Repository, lookup Lookuper) *Service {
	return &Service{repo: repo, lookup: lookup, now: time.Now}
}

// Add looks up a listing by address and stores it. This is the only
// operation that calls external APIs.
func (s *Service) Add(ctx context.Context, p auth.Principal, address string) (*House, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, apperr.ValidationFields(map[string]string{"address": "required"})
	}
	if s.lookup == nil {
		return nil, apperr.Validation("listing lookup is not configured; add the house manually")
	}

	listing, err := s.lookup.Lookup(ctx, address)
	if err != nil {
		if errors.Is(err, mls.ErrNoMatch) {
			return nil, apperr.Validation("no listing found for %q", address)
		}
		return nil, fmt.Errorf("looking up listing: %w", err)
	}

	f := parseListing(listing.RawJSON)
	return s.repo.Insert(ctx, &House{
		Address:       address,
		MprID:         listing.MprID,
		RealtorURL:    listing.RealtorURL,
		Price:         f.Price,
		Bedrooms:      f.Bedrooms,
		Bathrooms:     f.Bathrooms,
		Sqft:          f.Sqft,
		LotSize:       f.LotSize,
		YearBuilt:     f.YearBuilt,
		PropertyType:  f.PropertyType,
		ListingStatus: f.ListingStatus,
		RawJSON:       listing.RawJSON,
		AddedBy:       &p.UserID,
	})
}

// ManualInput describes a house added without a listing lookup.
type ManualInput struct {
	Address    string
	RealtorURL string
	Price      *int64
	Bedrooms   *float64
	Bathrooms  *float64
	Sqft       *int64
}

// AddManual stores a house from caller-supplied details.
func (s *Service) AddManual(ctx context.Context, p auth.Principal, in ManualInput) (*House, error) {
	address := strings.TrimSpace(in.Address)
	if address == "" {
		return nil, apperr.ValidationFields(map[string]string{"address": "required"})
	}
	return s.repo.Insert(ctx, &House{
		Address:    address,
		RealtorURL: in.RealtorURL,
		Price:      in.Price,
		Bedrooms:   in.Bedrooms,
		Bathrooms:  in.Bathrooms,
		Sqft:       in.Sqft,
		AddedBy:    &p.UserID,
	})
}

// Get returns a live house.
func (s *Service) Get(ctx context.Context, id int64) (*House, error) {
	return s.repo.Get(ctx, id)
}

// List returns live houses.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*House, error) {
	return s.repo.List(ctx, opts)
}

// Remove soft-deletes a house. Only whoever added it, or an admin, may.
func (s *Service) Remove(ctx context.Context, p auth.Principal, id int64) error {
	h, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && (h.AddedBy == nil || *h.AddedBy != p.UserID) {
		return apperr.Forbidden("house %d was added by another user", id)
	}
	ok, err := s.repo.SoftDelete(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("house", id)
	}
	return nil
}
