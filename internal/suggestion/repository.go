package suggestion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/evcraddock/hometrace/internal/db"
)

// Repository provides data access for suggestions. Methods run on the
// transaction carried by ctx when there is one.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a suggestion repository.
func NewRepository(sqlDB *sql.DB) *Repository {
	return &Repository{db: sqlDB}
}

var columns = []string{
	"id", "house_id", "buyer_id", "suggested_by_realtor_id", "status", "suggested_at",
	"message", "rejection_reason", "created_at", "updated_at",
}

func scanSuggestion(row interface{ Scan(...any) error }) (*Suggestion, error) {
	var s Suggestion
	var status string
	var message, reason sql.NullString
	if err := row.Scan(
		&s.ID, &s.HouseID, &s.BuyerID, &s.RealtorID, &status, &s.SuggestedAt,
		&message, &reason, &s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	s.Status = Status(status)
	s.SuggestedAt = s.SuggestedAt.UTC()
	s.Message = db.StringPtr(message)
	s.RejectionReason = db.StringPtr(reason)
	return &s, nil
}

// Insert stores a new suggestion.
func (r *Repository) Insert(ctx context.Context, s *Suggestion, now time.Time) (*Suggestion, error) {
	now = now.UTC()
	id, err := db.Insert(ctx, db.QuerierFromCtx(ctx, r.db), sq.Insert("visit_suggestions").
		Columns("house_id", "buyer_id", "suggested_by_realtor_id", "status", "suggested_at", "message", "created_at", "updated_at").
		Values(s.HouseID, s.BuyerID, s.RealtorID, string(s.Status), s.SuggestedAt.UTC(), s.Message, now, now))
	if err != nil {
		return nil, db.MapError(err, "suggestion", 0)
	}
	return r.Get(ctx, id)
}

// Get returns a live suggestion with its stored status.
func (r *Repository) Get(ctx context.Context, id int64) (*Suggestion, error) {
	row, err := db.QueryRow(ctx, db.QuerierFromCtx(ctx, r.db), db.Live("visit_suggestions", columns...).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	s, err := scanSuggestion(row)
	if err != nil {
		return nil, db.MapError(err, "suggestion", id)
	}
	return s, nil
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	BuyerID   int64
	RealtorID int64
	HouseID   int64
}

// List returns live suggestions, soonest first.
func (r *Repository) List(ctx context.Context, f Filter) (result []*Suggestion, err error) {
	b := db.Live("visit_suggestions", columns...).OrderBy("suggested_at", "id")
	if f.BuyerID != 0 {
		b = b.Where(sq.Eq{"buyer_id": f.BuyerID})
	}
	if f.RealtorID != 0 {
		b = b.Where(sq.Eq{"suggested_by_realtor_id": f.RealtorID})
	}
	if f.HouseID != 0 {
		b = b.Where(sq.Eq{"house_id": f.HouseID})
	}

	rows, err := db.Query(ctx, db.QuerierFromCtx(ctx, r.db), b)
	if err != nil {
		return nil, fmt.Errorf("listing suggestions: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for rows.Next() {
		s, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning suggestion: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating suggestions: %w", err)
	}
	return result, nil
}

// Expire rewrites a live PENDING suggestion to EXPIRED if its time falls
// inside the expiry window at now. It reports whether a row changed.
func (r *Repository) Expire(ctx context.Context, id int64, now time.Time) (bool, error) {
	n, err := db.Affected(ctx, db.QuerierFromCtx(ctx, r.db), sq.Update("visit_suggestions").
		Set("status", string(StatusExpired)).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": id, "status": string(StatusPending), "deleted_at": nil}).
		Where(sq.Lt{"suggested_at": expiresBefore(now)}))
	if err != nil {
		return false, db.MapError(err, "suggestion", id)
	}
	return n > 0, nil
}

// Decide moves a live suggestion that is still answerable at now from
// PENDING to the given status. It reports false when the stored row is no
// longer pending or its time has entered the expiry window.
func (r *Repository) Decide(ctx context.Context, id int64, to Status, reason *string, now time.Time) (bool, error) {
	b := sq.Update("visit_suggestions").
		Set("status", string(to)).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": id, "status": string(StatusPending), "deleted_at": nil}).
		Where(sq.GtOrEq{"suggested_at": expiresBefore(now)})
	if reason != nil {
		b = b.Set("rejection_reason", *reason)
	}

	n, err := db.Affected(ctx, db.QuerierFromCtx(ctx, r.db), b)
	if err != nil {
		return false, db.MapError(err, "suggestion", id)
	}
	return n > 0, nil
}

// SoftDelete marks a suggestion removed.
func (r *Repository) SoftDelete(ctx context.Context, id int64, now time.Time) (bool, error) {
	return db.SoftDelete(ctx, db.QuerierFromCtx(ctx, r.db), "visit_suggestions", id, now)
}

// ExpireDue rewrites every live PENDING suggestion inside the expiry
// window at now to EXPIRED and returns how many changed.
func (r *Repository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	n, err := db.Affected(ctx, db.QuerierFromCtx(ctx, r.db), sq.Update("visit_suggestions").
		Set("status", string(StatusExpired)).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"status": string(StatusPending), "deleted_at": nil}).
		Where(sq.Lt{"suggested_at": expiresBefore(now)}))
	if err != nil {
		return 0, fmt.Errorf("expiring due suggestions: %w", err)
	}
	return n, nil
}
