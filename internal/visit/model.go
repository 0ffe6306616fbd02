// Package visit owns the lifecycle of a buyer's walkthrough of a house.
package visit

import "time"

// Status is where a visit is in its lifecycle.
type Status string

const (
	StatusScheduled  Status = "SCHEDULED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// transitions lists the legal next states. Terminal states have none.
var transitions = map[Status][]Status{
	StatusScheduled:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a visit in s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool { return len(transitions[s]) == 0 }

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Impression is the buyer's overall reaction to a house.
type Impression string

const (
	ImpressionLoved    Impression = "LOVED"
	ImpressionLiked    Impression = "LIKED"
	ImpressionNeutral  Impression = "NEUTRAL"
	ImpressionDisliked Impression = "DISLIKED"
)

// Valid reports whether i is a known impression.
func (i Impression) Valid() bool {
	switch i {
	case ImpressionLoved, ImpressionLiked, ImpressionNeutral, ImpressionDisliked:
		return true
	}
	return false
}

// Visit is one buyer's scheduled or completed walkthrough of one house.
type Visit struct {
	ID                int64       `json:"id"`
	HouseID           int64       `json:"house_id"`
	BuyerID           int64       `json:"buyer_id"`
	SuggestionID      *int64      `json:"suggestion_id,omitempty"`
	Status            Status      `json:"status"`
	ScheduledAt       time.Time   `json:"scheduled_at"`
	StartedAt         *time.Time  `json:"started_at,omitempty"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty"`
	OverallImpression *Impression `json:"overall_impression,omitempty"`
	WouldBuy          *bool       `json:"would_buy,omitempty"`
	Notes             *string     `json:"notes,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}
