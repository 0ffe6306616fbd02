package tour

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/db"
	"github.com/evcraddock/hometrace/internal/visit"
)

// Service provides tour business logic.
type Service struct {
	tx     *db.TxManager
	repo   *Repository
	houses visit.Houses
	visits *visit.Repository
	conns  visit.Connections
	now    func() time.Time
}

// NewService creates a tour service.
func NewService(tx *db.TxManager, repo *Repository, houses visit.Houses, visits *visit.Repository, conns visit.Connections) *Service {
	return &Service{tx: tx, repo: repo, houses: houses, visits: visits, conns: conns, now: time.Now}
}

// WithClock replaces the service's time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateInput describes a new tour.
type CreateInput struct {
	Name          string
	BuyerID       *int64
	ScheduledDate *time.Time
	Notes         string
}

// Create plans a tour owned by the calling realtor.
func (s *Service) Create(ctx context.Context, p auth.Principal, in CreateInput) (*Tour, error) {
	if p.Role != auth.RoleRealtor {
		return nil, apperr.Forbidden("only realtors can create tours")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.ValidationFields(map[string]string{"name": "required"})
	}
	if in.BuyerID != nil {
		ok, err := s.conns.Exists(ctx, p.UserID, *in.BuyerID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Forbidden("not connected to buyer %d", *in.BuyerID)
		}
	}

	t, err := s.repo.Insert(ctx, &Tour{
		Name:          name,
		RealtorID:     p.UserID,
		BuyerID:       in.BuyerID,
		Status:        StatusPlanned,
		ScheduledDate: in.ScheduledDate,
		Notes:         strings.TrimSpace(in.Notes),
	}, s.now())
	if err != nil {
		return nil, err
	}
	return s.withStops(ctx, t)
}

func (s *Service) withStops(ctx context.Context, t *Tour) (*Tour, error) {
	stops, err := s.repo.Stops(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Stops = stops
	return t, nil
}

// owned loads a tour the caller may change.
func (s *Service) owned(ctx context.Context, id int64, p auth.Principal) (*Tour, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && t.RealtorID != p.UserID {
		return nil, apperr.Forbidden("tour %d belongs to another realtor", id)
	}
	return t, nil
}

// editable fails unless the tour still accepts stop changes. Call it inside
// the transaction that makes the change.
func (s *Service) editable(ctx context.Context, tourID int64) error {
	t, err := s.repo.Get(ctx, tourID)
	if err != nil {
		return err
	}
	if !t.Status.Editable() {
		return frozen(t)
	}
	return nil
}

func frozen(t *Tour) error {
	return &apperr.TransitionError{
		Entity: "tour",
		ID:     t.ID,
		From:   string(t.Status),
		Reason: "stops can only change while PLANNED or IN_PROGRESS",
	}
}

// StopInput describes a house added to a tour.
type StopInput struct {
	HouseID       int64
	EstimatedTime *time.Time
	Notes         string
}

// AddStop appends a house to the end of a tour.
func (s *Service) AddStop(ctx context.Context, tourID int64, p auth.Principal, in StopInput) (*Stop, error) {
	if _, err := s.owned(ctx, tourID, p); err != nil {
		return nil, err
	}
	if _, err := s.houses.Get(ctx, in.HouseID); err != nil {
		return nil, err
	}

	var stop *Stop
	now := s.now()
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.editable(ctx, tourID); err != nil {
			return err
		}
		next, err := s.repo.NextOrderIndex(ctx, tourID)
		if err != nil {
			return err
		}
		stop, err = s.repo.InsertStop(ctx, &Stop{
			TourID:        tourID,
			HouseID:       in.HouseID,
			OrderIndex:    next,
			EstimatedTime: in.EstimatedTime,
			Notes:         strings.TrimSpace(in.Notes),
		}, now)
		if err != nil {
			if apperr.CodeOf(err) == apperr.CodeDuplicate {
				return apperr.Duplicate("house %d is already a stop on tour %d", in.HouseID, tourID)
			}
			return err
		}
		return s.repo.Touch(ctx, tourID, now)
	})
	if err != nil {
		return nil, err
	}
	return stop, nil
}

// RemoveStop soft-deletes a stop. Remaining stops keep their order_index.
func (s *Service) RemoveStop(ctx context.Context, tourID, stopID int64, p auth.Principal) error {
	if _, err := s.owned(ctx, tourID, p); err != nil {
		return err
	}

	now := s.now()
	return s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.editable(ctx, tourID); err != nil {
			return err
		}
		stop, err := s.repo.GetStop(ctx, stopID)
		if err != nil {
			return err
		}
		if stop.TourID != tourID {
			return apperr.NotFound("tour stop", stopID)
		}
		ok, err := s.repo.SoftDeleteStop(ctx, stopID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("tour stop", stopID)
		}
		return s.repo.Touch(ctx, tourID, now)
	})
}

// UpdateStatus moves a tour through PLANNED, IN_PROGRESS and a terminal
// status. A tour cannot complete without having started.
func (s *Service) UpdateStatus(ctx context.Context, tourID int64, to Status, p auth.Principal) (*Tour, error) {
	if !to.Valid() {
		return nil, apperr.ValidationFields(map[string]string{"status": fmt.Sprintf("unknown tour status %q", to)})
	}
	t, err := s.owned(ctx, tourID, p)
	if err != nil {
		return nil, err
	}
	if !t.Status.CanTransition(to) {
		return nil, apperr.Transition("tour", tourID, string(t.Status), string(to))
	}

	ok, err := s.repo.Transition(ctx, tourID, t.Status, to, s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		cur, err := s.repo.Get(ctx, tourID)
		if err != nil {
			return nil, err
		}
		return nil, apperr.Transition("tour", tourID, string(cur.Status), string(to))
	}

	t, err = s.repo.Get(ctx, tourID)
	if err != nil {
		return nil, err
	}
	return s.withStops(ctx, t)
}

// LinkStopToVisit records which visit happened at a stop. The caller must
// be able to read the visit, which must be for the stop's house and, on a
// tour for a buyer, that buyer's.
func (s *Service) LinkStopToVisit(ctx context.Context, stopID, visitID int64, p auth.Principal) (*Stop, error) {
	stop, err := s.repo.GetStop(ctx, stopID)
	if err != nil {
		return nil, err
	}
	t, err := s.owned(ctx, stop.TourID, p)
	if err != nil {
		return nil, err
	}
	if stop.VisitID != nil && *stop.VisitID == visitID {
		return stop, nil
	}

	v, err := s.visits.Get(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if err := s.canSeeVisit(ctx, p, v); err != nil {
		return nil, err
	}
	if v.HouseID != stop.HouseID {
		return nil, apperr.ValidationFields(map[string]string{
			"visit_id": fmt.Sprintf("visit %d is for house %d, stop is for house %d", visitID, v.HouseID, stop.HouseID),
		})
	}
	if t.BuyerID != nil && v.BuyerID != *t.BuyerID {
		return nil, apperr.ValidationFields(map[string]string{
			"visit_id": fmt.Sprintf("visit %d belongs to a different buyer than tour %d", visitID, t.ID),
		})
	}

	if err := s.repo.LinkVisit(ctx, stopID, visitID); err != nil {
		if apperr.CodeOf(err) == apperr.CodeDuplicate {
			return nil, apperr.Duplicate("visit %d is already linked to another stop", visitID)
		}
		return nil, err
	}
	return s.repo.GetStop(ctx, stopID)
}

// canSeeVisit applies the visit read rule: admins, the visit's buyer and
// realtors connected to that buyer.
func (s *Service) canSeeVisit(ctx context.Context, p auth.Principal, v *visit.Visit) error {
	if p.IsAdmin() || p.UserID == v.BuyerID {
		return nil
	}
	ok, err := s.conns.Exists(ctx, p.UserID, v.BuyerID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("not allowed to view visits of buyer %d", v.BuyerID)
	}
	return nil
}

func canRead(p auth.Principal, t *Tour) error {
	if p.IsAdmin() || p.UserID == t.RealtorID || (t.BuyerID != nil && *t.BuyerID == p.UserID) {
		return nil
	}
	return apperr.Forbidden("tour %d belongs to other users", t.ID)
}

// Get returns a tour with its live stops in order.
func (s *Service) Get(ctx context.Context, id int64, p auth.Principal) (*Tour, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canRead(p, t); err != nil {
		return nil, err
	}
	return s.withStops(ctx, t)
}

// List returns the caller's tours without stops: owned as a realtor, those
// planned for them as a buyer, all of them as an admin.
func (s *Service) List(ctx context.Context, p auth.Principal, status Status) ([]*Tour, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.ValidationFields(map[string]string{"status": "unknown tour status"})
	}
	f := Filter{Status: status}
	switch p.Role {
	case auth.RoleAdmin:
	case auth.RoleRealtor:
		f.RealtorID = p.UserID
	default:
		f.BuyerID = p.UserID
	}
	return s.repo.List(ctx, f)
}

// Remove soft-deletes a tour. Its stops are only reachable through it.
func (s *Service) Remove(ctx context.Context, id int64, p auth.Principal) error {
	if _, err := s.owned(ctx, id, p); err != nil {
		return err
	}
	ok, err := s.repo.SoftDelete(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("tour", id)
	}
	return nil
}
