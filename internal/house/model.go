// Package house tracks the listings that visits and tours point at.
package house

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/evcraddock/hometrace/internal/db"
)

// House is a tracked listing. RawJSON is the upstream listing document,
// stored as-is.
type House struct {
	ID            int64           `json:"id"`
	Address       string          `json:"address"`
	MprID         string          `json:"mpr_id,omitempty"`
	RealtorURL    string          `json:"realtor_url,omitempty"`
	Price         *int64          `json:"price,omitempty"`
	Bedrooms      *float64        `json:"bedrooms,omitempty"`
	Bathrooms     *float64        `json:"bathrooms,omitempty"`
	Sqft          *int64          `json:"sqft,omitempty"`
	LotSize       *float64        `json:"lot_size,omitempty"`
	YearBuilt     *int64          `json:"year_built,omitempty"`
	PropertyType  *string         `json:"property_type,omitempty"`
	ListingStatus *string         `json:"listing_status,omitempty"`
	PhotoURL      string          `json:"photo_url,omitempty"`
	RawJSON       json.RawMessage `json:"raw_json,omitempty"`
	AddedBy       *int64          `json:"added_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

var columns = []string{
	"id", "address", "mpr_id", "realtor_url", "price", "bedrooms", "bathrooms",
	"sqft", "lot_size", "year_built", "property_type", "listing_status",
	"raw_json", "added_by", "created_at", "updated_at",
}

func scanHouse(row interface{ Scan(...any) error }) (*House, error) {
	var h House
	var mprID, propertyType, listingStatus sql.NullString
	var price, sqft, yearBuilt, addedBy sql.NullInt64
	var bedrooms, bathrooms, lotSize sql.NullFloat64
	var rawJSON string

	err := row.Scan(
		&h.ID, &h.Address, &mprID, &h.RealtorURL,
		&price, &bedrooms, &bathrooms, &sqft, &lotSize,
		&yearBuilt, &propertyType, &listingStatus,
		&rawJSON, &addedBy, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	h.MprID = mprID.String
	h.Price = db.Int64Ptr(price)
	h.Sqft = db.Int64Ptr(sqft)
	h.YearBuilt = db.Int64Ptr(yearBuilt)
	h.AddedBy = db.Int64Ptr(addedBy)
	h.Bedrooms = floatPtr(bedrooms)
	h.Bathrooms = floatPtr(bathrooms)
	h.LotSize = floatPtr(lotSize)
	h.PropertyType = db.StringPtr(propertyType)
	h.ListingStatus = db.StringPtr(listingStatus)
	h.RawJSON = json.RawMessage(rawJSON)
	h.PhotoURL = extractPhotoURL(h.RawJSON)

	return &h, nil
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
