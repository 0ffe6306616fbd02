package visit

import (
	"context"
	"time"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/house"
)

// Houses loads live houses.
type Houses interface {
	Get(ctx context.Context, id int64) (*house.House, error)
}

// Connections answers realtor to buyer relationship questions.
type Connections interface {
	Exists(ctx context.Context, realtorID, buyerID int64) (bool, error)
	BuyerIDs(ctx context.Context, realtorID int64) ([]int64, error)
}

// Service provides visit business logic.
type Service struct {
	repo   *Repository
	houses Houses
	conns  Connections
	now    func() time.Time
}

// NewService creates a visit service.
func NewService(repo *Repository, houses Houses, conns Connections) *Service {
	return &Service{repo: repo, houses: houses, conns: conns, now: time.Now}
}

// WithClock replaces the service's time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ScheduleInput describes a new visit.
type ScheduleInput struct {
	HouseID     int64
	ScheduledAt time.Time
	Notes       *string
}

// Schedule creates a SCHEDULED visit for the calling buyer.
func (s *Service) Schedule(ctx context.Context, p auth.Principal, in ScheduleInput) (*Visit, error) {
	if p.Role != auth.RoleBuyer {
		return nil, apperr.Forbidden("only buyers can schedule visits")
	}
	if in.ScheduledAt.IsZero() {
		return nil, apperr.ValidationFields(map[string]string{"scheduled_at": "required"})
	}
	if _, err := s.houses.Get(ctx, in.HouseID); err != nil {
		return nil, err
	}

	return s.repo.Insert(ctx, &Visit{
		HouseID:     in.HouseID,
		BuyerID:     p.UserID,
		Status:      StatusScheduled,
		ScheduledAt: in.ScheduledAt,
		Notes:       in.Notes,
	}, s.now())
}

// Start moves a SCHEDULED visit to IN_PROGRESS.
func (s *Service) Start(ctx context.Context, id int64, p auth.Principal) (*Visit, error) {
	now := s.now().UTC()
	return s.transition(ctx, id, p, StatusInProgress, map[string]any{"started_at": now}, now)
}

// CompleteInput is the buyer's feedback recorded on completion.
type CompleteInput struct {
	Impression *Impression
	WouldBuy   *bool
	Notes      *string
}

// Complete moves an IN_PROGRESS visit to COMPLETED and stores the feedback.
func (s *Service) Complete(ctx context.Context, id int64, p auth.Principal, in CompleteInput) (*Visit, error) {
	if in.Impression != nil && !in.Impression.Valid() {
		return nil, apperr.ValidationFields(map[string]string{
			"overall_impression": "must be one of LOVED, LIKED, NEUTRAL, DISLIKED",
		})
	}

	now := s.now().UTC()
	set := map[string]any{"completed_at": now}
	if in.Impression != nil {
		set["overall_impression"] = string(*in.Impression)
	}
	if in.WouldBuy != nil {
		set["would_buy"] = *in.WouldBuy
	}
	if in.Notes != nil {
		set["notes"] = *in.Notes
	}
	return s.transition(ctx, id, p, StatusCompleted, set, now)
}

// Cancel moves a SCHEDULED or IN_PROGRESS visit to CANCELLED.
func (s *Service) Cancel(ctx context.Context, id int64, p auth.Principal) (*Visit, error) {
	return s.transition(ctx, id, p, StatusCancelled, nil, s.now())
}

func (s *Service) transition(ctx context.Context, id int64, p auth.Principal, to Status, set map[string]any, now time.Time) (*Visit, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if v.BuyerID != p.UserID {
		return nil, apperr.Forbidden("visit %d belongs to another buyer", id)
	}
	if !v.Status.CanTransition(to) {
		return nil, apperr.Transition("visit", id, string(v.Status), string(to))
	}

	ok, err := s.repo.Transition(ctx, id, v.Status, to, set, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else moved or removed it between the read and the update.
		cur, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Transition("visit", id, string(cur.Status), string(to))
	}
	return s.repo.Get(ctx, id)
}

// Remove soft-deletes a visit in any status. The owning buyer or an admin may.
func (s *Service) Remove(ctx context.Context, id int64, p auth.Principal) error {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && v.BuyerID != p.UserID {
		return apperr.Forbidden("visit %d belongs to another buyer", id)
	}
	ok, err := s.repo.SoftDelete(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("visit", id)
	}
	return nil
}

// Get returns a visit the caller may read.
func (s *Service) Get(ctx context.Context, id int64, p auth.Principal) (*Visit, error) {
	v, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canRead(ctx, p, v.BuyerID); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) canRead(ctx context.Context, p auth.Principal, buyerID int64) error {
	switch {
	case p.IsAdmin(), p.UserID == buyerID:
		return nil
	case p.Role == auth.RoleRealtor:
		ok, err := s.conns.Exists(ctx, p.UserID, buyerID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return apperr.Forbidden("not allowed to view visits of buyer %d", buyerID)
}

// ListFilter narrows List. BuyerID is honoured for realtors and admins.
type ListFilter struct {
	BuyerID  int64
	HouseID  int64
	Status   Status
	Upcoming bool
	Limit    uint64
}

// List returns the visits the caller may read: their own as a buyer, those
// of connected buyers as a realtor, and all of them as an admin.
func (s *Service) List(ctx context.Context, p auth.Principal, lf ListFilter) ([]*Visit, error) {
	if lf.Status != "" && !lf.Status.Valid() {
		return nil, apperr.ValidationFields(map[string]string{"status": "unknown visit status"})
	}

	f := Filter{HouseID: lf.HouseID, Status: lf.Status, Limit: lf.Limit}
	if lf.Upcoming {
		now := s.now()
		f.From = &now
	}

	switch {
	case p.Role == auth.RoleBuyer:
		f.BuyerIDs = []int64{p.UserID}
	case lf.BuyerID != 0:
		if err := s.canRead(ctx, p, lf.BuyerID); err != nil {
			return nil, err
		}
		f.BuyerIDs = []int64{lf.BuyerID}
	case p.Role == auth.RoleRealtor:
		ids, err := s.conns.BuyerIDs(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		f.BuyerIDs = append([]int64{}, ids...)
	}
	return s.repo.List(ctx, f)
}
