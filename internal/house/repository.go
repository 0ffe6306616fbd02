package house

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/evcraddock/hometrace/internal/db"
)

// Repository provides data access for houses.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a house repository.
func NewRepository(sqlDB *sql.DB) *Repository {
	return &Repository{db: sqlDB}
}

// Insert stores h and returns it as read back from the database.
func (r *Repository) Insert(ctx context.Context, h *House) (*House, error) {
	q := db.QuerierFromCtx(ctx, r.db)

	var mprID any
	if h.MprID != "" {
		mprID = h.MprID
	}
	raw := string(h.RawJSON)
	if raw == "" {
		raw = "{}"
	}

	id, err := db.Insert(ctx, q, sq.Insert("houses").
		Columns("address", "mpr_id", "realtor_url", "price", "bedrooms", "bathrooms",
			"sqft", "lot_size", "year_built", "property_type", "listing_status", "raw_json", "added_by").
		Values(h.Address, mprID, h.RealtorURL, h.Price, h.Bedrooms, h.Bathrooms,
			h.Sqft, h.LotSize, h.YearBuilt, h.PropertyType, h.ListingStatus, raw, h.AddedBy))
	if err != nil {
		return nil, db.MapError(err, "house", 0)
	}
	return r.Get(ctx, id)
}

// Get returns a live house.
func (r *Repository) Get(ctx context.Context, id int64) (*House, error) {
	row, err := db.QueryRow(ctx, db.QuerierFromCtx(ctx, r.db), db.Live("houses", columns...).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	h, err := scanHouse(row)
	if err != nil {
		return nil, db.MapError(err, "house", id)
	}
	return h, nil
}

// ListOptions filters List.
type ListOptions struct {
	Search  string // substring of the address
	AddedBy int64  // 0 = anyone
	Limit   uint64 // 0 = no limit
}

// List returns live houses, newest first.
func (r *Repository) List(ctx context.Context, opts ListOptions) (houses []*House, err error) {
	b := db.Live("houses", columns...).OrderBy("created_at DESC", "id DESC")
	if opts.Search != "" {
		b = b.Where(sq.Like{"address": "%" + opts.Search + "%"})
	}
	if opts.AddedBy != 0 {
		b = b.Where(sq.Eq{"added_by": opts.AddedBy})
	}
	if opts.Limit > 0 {
		b = b.Limit(opts.Limit)
	}

	rows, err := db.Query(ctx, db.QuerierFromCtx(ctx, r.db), b)
	if err != nil {
		return nil, fmt.Errorf("listing houses: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for rows.Next() {
		h, err := scanHouse(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning house: %w", err)
		}
		houses = append(houses, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating houses: %w", err)
	}
	return houses, nil
}

// SoftDelete marks a house removed. It reports false if no live house matched.
func (r *Repository) SoftDelete(ctx context.Context, id int64, now time.Time) (bool, error) {
	return db.SoftDelete(ctx, db.QuerierFromCtx(ctx, r.db), "houses", id, now)
}
