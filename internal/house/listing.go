package house

import "encoding/json"

// listingFields are the values pulled out of an upstream listing document.
type listingFields struct {
	Price         *int64
	Bedrooms      *float64
	Bathrooms     *float64
	Sqft          *int64
	LotSize       *float64
	YearBuilt     *int64
	PropertyType  *string
	ListingStatus *string
}

const sqftPerAcre = 43560.0

// parseListing extracts known fields from a RapidAPI listing response.
// Fields are looked up in "description" first, then at the top level.
func parseListing(raw json.RawMessage) listingFields {
	var f listingFields

	data := unwrapData(raw)
	if data == nil {
		return f
	}

	var desc map[string]json.RawMessage
	if d, ok := data["description"]; ok {
		if err := json.Unmarshal(d, &desc); err != nil {
			desc = nil
		}
	}

	f.Price = jsonInt64(data, "list_price", "price")
	f.ListingStatus = jsonString(data, "prop_status", "status")

	for _, m := range []map[string]json.RawMessage{desc, data} {
		if m == nil {
			continue
		}
		if f.Bedrooms == nil {
			f.Bedrooms = jsonFloat64(m, "beds", "bedrooms")
		}
		if f.Bathrooms == nil {
			f.Bathrooms = jsonFloat64(m, "baths", "bathrooms", "baths_consolidated")
		}
		if f.Sqft == nil {
			f.Sqft = jsonInt64(m, "sqft", "building_size", "living_area")
		}
		if f.YearBuilt == nil {
			f.YearBuilt = jsonInt64(m, "year_built")
		}
		if f.PropertyType == nil {
			f.PropertyType = jsonString(m, "type", "prop_type", "property_type")
		}
		if f.LotSize == nil {
			f.LotSize = jsonFloat64(m, "lot_sqft", "lot_size")
		}
	}

	// Values over 100 are square feet, not acres.
	if f.LotSize != nil && *f.LotSize > 100 {
		acres := *f.LotSize / sqftPerAcre
		f.LotSize = &acres
	}

	return f
}

// extractPhotoURL returns the first photo tagged house_view, else the first photo.
func extractPhotoURL(raw json.RawMessage) string {
	data := unwrapData(raw)
	photosRaw, ok := data["photos"]
	if !ok {
		return ""
	}

	var photos []struct {
		Href string `json:"href"`
		Tags []struct {
			Label string `json:"label"`
		} `json:"tags"`
	}
	if err := json.Unmarshal(photosRaw, &photos); err != nil || len(photos) == 0 {
		return ""
	}

	for _, p := range photos {
		for _, t := range p.Tags {
			if t.Label == "house_view" && p.Href != "" {
				return p.Href
			}
		}
	}
	return photos[0].Href
}

// unwrapData decodes raw and descends into a "data" envelope when present.
func unwrapData(raw json.RawMessage) map[string]json.RawMessage {
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	if nested, ok := data["data"]; ok {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(nested, &m); err == nil {
			return m
		}
	}
	return data
}

func jsonInt64(data map[string]json.RawMessage, keys ...string) *int64 {
	for _, key := range keys {
		raw, ok := data[key]
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err == nil {
			i := int64(v)
			return &i
		}
	}
	return nil
}

func jsonFloat64(data map[string]json.RawMessage, keys ...string) *float64 {
	for _, key := range keys {
		raw, ok := data[key]
		if !ok {
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err == nil {
			return &v
		}
	}
	return nil
}

func jsonString(data map[string]json.RawMessage, keys ...string) *string {
	for _, key := range keys {
		raw, ok := data[key]
		if !ok {
			continue
		}
		var v string
		if err := json.Unmarshal(raw, &v); err == nil && v != "" {
			return &v
		}
	}
	return nil
}
