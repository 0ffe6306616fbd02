// Package tour plans ordered multi-house outings run by a realtor.
package tour

import "time"

// Status is where a tour is in its lifecycle.
type Status string

const (
	StatusPlanned    Status = "PLANNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusPlanned:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether a tour in s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Editable reports whether stops may be added or removed in s.
func (s Status) Editable() bool {
	return s == StatusPlanned || s == StatusInProgress
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Tour is a realtor's planned sequence of house stops, optionally for one buyer.
type Tour struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	RealtorID     int64      `json:"realtor_id"`
	BuyerID       *int64     `json:"buyer_id,omitempty"`
	Status        Status     `json:"status"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	Notes         string     `json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Stops         []*Stop    `json:"stops,omitempty"`
}

// Stop is one house on a tour. OrderIndex values are never reused within
// a tour, so removing a stop leaves a gap.
type Stop struct {
	ID            int64      `json:"id"`
	TourID        int64      `json:"tour_id"`
	HouseID       int64      `json:"house_id"`
	VisitID       *int64     `json:"visit_id,omitempty"`
	OrderIndex    int        `json:"order_index"`
	EstimatedTime *time.Time `json:"estimated_time,omitempty"`
	Notes         string     `json:"notes"`
	CreatedAt     time.Time  `json:"created_at"`
}
