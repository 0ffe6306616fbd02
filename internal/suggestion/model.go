// Package suggestion handles realtor-proposed visits that a buyer accepts
// or rejects.
package suggestion

import (
	"strings"
	"time"
)

// ExpiryWindow is how far ahead of the suggested time a pending suggestion
// must still be answered.
const ExpiryWindow = 24 * time.Hour

// Status is where a suggestion is in its lifecycle.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// Suggestion is a realtor's proposal that a buyer visit a house at a time.
type Suggestion struct {
	ID              int64     `json:"id"`
	HouseID         int64     `json:"house_id"`
	BuyerID         int64     `json:"buyer_id"`
	RealtorID       int64     `json:"suggested_by_realtor_id"`
	Status          Status    `json:"status"`
	SuggestedAt     time.Time `json:"suggested_at"`
	Message         *string   `json:"message,omitempty"`
	RejectionReason *string   `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ResolveEffectiveStatus returns the status s has at now. A pending
// suggestion whose time is less than ExpiryWindow away, or already past, is
// expired whatever is stored.
func ResolveEffectiveStatus(s *Suggestion, now time.Time) Status {
	if s.Status == StatusPending && s.SuggestedAt.Sub(now) < ExpiryWindow {
		return StatusExpired
	}
	return s.Status
}

func expiresBefore(now time.Time) time.Time {
	return now.Add(ExpiryWindow).UTC()
}

func lower(s Status) string { return strings.ToLower(string(s)) }
