package suggestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/db"
	"github.com/evcraddock/hometrace/internal/visit"
)

// Notifier tells the other party about suggestion events. Implementations
// must not block; delivery failures are theirs to log.
type Notifier interface {
	SuggestionCreated(ctx context.Context, s *Suggestion)
	SuggestionAccepted(ctx context.Context, s *Suggestion, v *visit.Visit)
	SuggestionRejected(ctx context.Context, s *Suggestion)
}

type nopNotifier struct{}

func (nopNotifier) SuggestionCreated(context.Context, *Suggestion)                 {}
func (nopNotifier) SuggestionAccepted(context.Context, *Suggestion, *visit.Visit) {}
func (nopNotifier) SuggestionRejected(context.Context, *Suggestion)                {}

// errLostRace means the conditional update matched nothing.
var errLostRace = errors.New("suggestion changed concurrently")

// Service provides suggestion business logic.
type Service struct {
	tx       *db.TxManager
	repo     *Repository
	visits   *visit.Repository
	houses   visit.Houses
	conns    visit.Connections
	notifier Notifier
	now      func() time.Time
}

// NewService creates a suggestion service. A nil notifier drops events.
func NewService(tx *db.TxManager, repo *Repository, visits *visit.Repository, houses visit.Houses, conns visit.Connections, notifier Notifier) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{
		tx:       tx,
		repo:     repo,
		visits:   visits,
		houses:   houses,
		conns:    conns,
		notifier: notifier,
		now:      time.Now,
	}
}

// WithClock replaces the service's time source.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// SuggestInput describes a new suggestion.
type SuggestInput struct {
	BuyerID     int64
	HouseID     int64
	SuggestedAt time.Time
	Message     *string
}

// Suggest records a PENDING suggestion from the calling realtor to a
// connected buyer.
func (s *Service) Suggest(ctx context.Context, p auth.Principal, in SuggestInput) (*Suggestion, error) {
	if p.Role != auth.RoleRealtor {
		return nil, apperr.Forbidden("only realtors can suggest visits")
	}
	if in.SuggestedAt.IsZero() {
		return nil, apperr.ValidationFields(map[string]string{"suggested_at": "required"})
	}

	ok, err := s.conns.Exists(ctx, p.UserID, in.BuyerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("not connected to buyer %d", in.BuyerID)
	}
	if _, err := s.houses.Get(ctx, in.HouseID); err != nil {
		return nil, err
	}

	now := s.now()
	if in.SuggestedAt.Sub(now) < ExpiryWindow {
		return nil, apperr.ValidationFields(map[string]string{
			"suggested_at": fmt.Sprintf("must be at least %s in the future", ExpiryWindow),
		})
	}

	sg, err := s.repo.Insert(ctx, &Suggestion{
		HouseID:     in.HouseID,
		BuyerID:     in.BuyerID,
		RealtorID:   p.UserID,
		Status:      StatusPending,
		SuggestedAt: in.SuggestedAt,
		Message:     trimmed(in.Message),
	}, now)
	if err != nil {
		return nil, err
	}
	s.notifier.SuggestionCreated(ctx, sg)
	return sg, nil
}

// expire applies lazy expiry to sg and persists it. Runs outside any
// caller transaction so the rewrite survives a rolled back decision.
func (s *Service) expire(ctx context.Context, sg *Suggestion, now time.Time) error {
	if sg.Status != StatusPending || ResolveEffectiveStatus(sg, now) != StatusExpired {
		return nil
	}
	if _, err := s.repo.Expire(ctx, sg.ID, now); err != nil {
		return fmt.Errorf("expiring suggestion %d: %w", sg.ID, err)
	}
	sg.Status = StatusExpired
	sg.UpdatedAt = now.UTC()
	return nil
}

func (s *Service) canRead(p auth.Principal, sg *Suggestion) error {
	if p.IsAdmin() || p.UserID == sg.BuyerID || p.UserID == sg.RealtorID {
		return nil
	}
	return apperr.Forbidden("suggestion %d belongs to other users", sg.ID)
}

// Get returns a suggestion with its effective status.
func (s *Service) Get(ctx context.Context, id int64, p auth.Principal) (*Suggestion, error) {
	sg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.canRead(p, sg); err != nil {
		return nil, err
	}
	if err := s.expire(ctx, sg, s.now()); err != nil {
		return nil, err
	}
	return sg, nil
}

// ListFilter narrows List. Status matches the effective status.
type ListFilter struct {
	Status  Status
	HouseID int64
}

// List returns the caller's suggestions: received as a buyer, sent as a
// realtor, all of them as an admin.
func (s *Service) List(ctx context.Context, p auth.Principal, lf ListFilter) ([]*Suggestion, error) {
	if lf.Status != "" && !lf.Status.Valid() {
		return nil, apperr.ValidationFields(map[string]string{"status": "unknown suggestion status"})
	}

	f := Filter{HouseID: lf.HouseID}
	switch p.Role {
	case auth.RoleAdmin:
	case auth.RoleRealtor:
		f.RealtorID = p.UserID
	default:
		f.BuyerID = p.UserID
	}

	all, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := make([]*Suggestion, 0, len(all))
	for _, sg := range all {
		if err := s.expire(ctx, sg, now); err != nil {
			return nil, err
		}
		if lf.Status == "" || sg.Status == lf.Status {
			result = append(result, sg)
		}
	}
	return result, nil
}

// decidable loads a suggestion for the target buyer to answer and fails
// unless it is effectively PENDING.
func (s *Service) decidable(ctx context.Context, id int64, p auth.Principal, to Status) (*Suggestion, error) {
	sg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sg.BuyerID != p.UserID {
		return nil, apperr.Forbidden("suggestion %d was made to another buyer", id)
	}
	if err := s.expire(ctx, sg, s.now()); err != nil {
		return nil, err
	}
	if sg.Status != StatusPending {
		return nil, transitionError(sg, to)
	}
	return sg, nil
}

// lostRace reloads a suggestion whose conditional update failed and
// reports the state it is now in.
func (s *Service) lostRace(ctx context.Context, id int64, to Status) error {
	sg, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.expire(ctx, sg, s.now()); err != nil {
		return err
	}
	return transitionError(sg, to)
}

func transitionError(sg *Suggestion, to Status) error {
	te := apperr.Transition("suggestion", sg.ID, string(sg.Status), string(to))
	if sg.Status != StatusPending {
		te.Reason = "already " + lower(sg.Status)
	}
	return te
}

// Accept turns a pending suggestion into a SCHEDULED visit at the suggested
// time. The status change and the visit insert commit together or not at
// all; of two concurrent accepts exactly one succeeds.
func (s *Service) Accept(ctx context.Context, id int64, p auth.Principal) (*visit.Visit, error) {
	sg, err := s.decidable(ctx, id, p, StatusAccepted)
	if err != nil {
		return nil, err
	}

	var v *visit.Visit
	now := s.now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		ok, err := s.repo.Decide(ctx, id, StatusAccepted, nil, now)
		if err != nil {
			return err
		}
		if !ok {
			return errLostRace
		}

		suggestionID := sg.ID
		v, err = s.visits.Insert(ctx, &visit.Visit{
			HouseID:      sg.HouseID,
			BuyerID:      sg.BuyerID,
			SuggestionID: &suggestionID,
			Status:       visit.StatusScheduled,
			ScheduledAt:  sg.SuggestedAt,
		}, now)
		return err
	})
	if errors.Is(err, errLostRace) {
		return nil, s.lostRace(ctx, id, StatusAccepted)
	}
	if err != nil {
		return nil, err
	}

	sg.Status = StatusAccepted
	sg.UpdatedAt = now.UTC()
	s.notifier.SuggestionAccepted(ctx, sg, v)
	return v, nil
}

// Reject declines a pending suggestion with an optional reason.
func (s *Service) Reject(ctx context.Context, id int64, p auth.Principal, reason *string) (*Suggestion, error) {
	if _, err := s.decidable(ctx, id, p, StatusRejected); err != nil {
		return nil, err
	}

	ok, err := s.repo.Decide(ctx, id, StatusRejected, trimmed(reason), s.now())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.lostRace(ctx, id, StatusRejected)
	}

	sg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.notifier.SuggestionRejected(ctx, sg)
	return sg, nil
}

// Withdraw soft-deletes a suggestion. Only the suggesting realtor or an
// admin may. A visit already created from it is left alone.
func (s *Service) Withdraw(ctx context.Context, id int64, p auth.Principal) error {
	sg, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && sg.RealtorID != p.UserID {
		return apperr.Forbidden("suggestion %d was made by another realtor", id)
	}
	ok, err := s.repo.SoftDelete(ctx, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("suggestion", id)
	}
	return nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
