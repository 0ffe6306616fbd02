package visit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/evcraddock/hometrace/internal/db"
)

// Repository provides data access for visits. Every method runs on the
// transaction carried by ctx when there is one.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a visit repository.
func NewRepository(sqlDB *sql.DB) *Repository {
	return &Repository{db: sqlDB}
}

var columns = []string{
	"id", "house_id", "buyer_id", "suggestion_id", "status", "scheduled_at",
	"started_at", "completed_at", "overall_impression", "would_buy", "notes",
	"created_at", "updated_at",
}

func scanVisit(row interface{ Scan(...any) error }) (*Visit, error) {
	var v Visit
	var status string
	var suggestionID sql.NullInt64
	var startedAt, completedAt sql.NullTime
	var impression, notes sql.NullString
	var wouldBuy sql.NullBool

	if err := row.Scan(
		&v.ID, &v.HouseID, &v.BuyerID, &suggestionID, &status, &v.ScheduledAt,
		&startedAt, &completedAt, &impression, &wouldBuy, &notes,
		&v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}

	v.Status = Status(status)
	v.ScheduledAt = v.ScheduledAt.UTC()
	v.SuggestionID = db.Int64Ptr(suggestionID)
	v.StartedAt = db.TimePtr(startedAt)
	v.CompletedAt = db.TimePtr(completedAt)
	v.Notes = db.StringPtr(notes)
	if impression.Valid {
		i := Impression(impression.String)
		v.OverallImpression = &i
	}
	if wouldBuy.Valid {
		b := wouldBuy.Bool
		v.WouldBuy = &b
	}
	return &v, nil
}

// Insert stores a new visit and returns it as read back.
func (r *Repository) Insert(ctx context.Context, v *Visit, now time.Time) (*Visit, error) {
	now = now.UTC()
	id, err := db.Insert(ctx, db.QuerierFromCtx(ctx, r.db), sq.Insert("visits").
		Columns("house_id", "buyer_id", "suggestion_id", "status", "scheduled_at", "notes", "created_at", "updated_at").
		Values(v.HouseID, v.BuyerID, v.SuggestionID, string(v.Status), v.ScheduledAt.UTC(), v.Notes, now, now))
	if err != nil {
		return nil, db.MapError(err, "visit", 0)
	}
	return r.Get(ctx, id)
}

// Get returns a live visit.
func (r *Repository) Get(ctx context.Context, id int64) (*Visit, error) {
	row, err := db.QueryRow(ctx, db.QuerierFromCtx(ctx, r.db), db.Live("visits", columns...).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	v, err := scanVisit(row)
	if err != nil {
		return nil, db.MapError(err, "visit", id)
	}
	return v, nil
}

// Filter narrows List. Nil BuyerIDs means every buyer; an empty non-nil
// slice matches nothing.
type Filter struct {
	BuyerIDs []int64
	HouseID  int64
	Status   Status
	From     *time.Time // scheduled_at >= From
	Limit    uint64
}

// List returns live visits ordered by scheduled time.
func (r *Repository) List(ctx context.Context, f Filter) (visits []*Visit, err error) {
	if f.BuyerIDs != nil && len(f.BuyerIDs) == 0 {
		return nil, nil
	}

	b := db.Live("visits", columns...).OrderBy("scheduled_at", "id")
	if f.BuyerIDs != nil {
		b = b.Where(sq.Eq{"buyer_id": f.BuyerIDs})
	}
	if f.HouseID != 0 {
		b = b.Where(sq.Eq{"house_id": f.HouseID})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.From != nil {
		b = b.Where(sq.GtOrEq{"scheduled_at": f.From.UTC()})
	}
	if f.Limit > 0 {
		b = b.Limit(f.Limit)
	}

	rows, err := db.Query(ctx, db.QuerierFromCtx(ctx, r.db), b)
	if err != nil {
		return nil, fmt.Errorf("listing visits: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning visit: %w", err)
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating visits: %w", err)
	}
	return visits, nil
}

// Transition moves a live visit from one status to another, applying the
// extra column values in set. The update only matches while the stored
// status is still from; it reports false otherwise.
func (r *Repository) Transition(ctx context.Context, id int64, from, to Status, set map[string]any, now time.Time) (bool, error) {
	b := sq.Update("visits").
		Set("status", string(to)).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": id, "status": string(from), "deleted_at": nil})
	for col, val := range set {
		b = b.Set(col, val)
	}

	n, err := db.Affected(ctx, db.QuerierFromCtx(ctx, r.db), b)
	if err != nil {
		return false, db.MapError(err, "visit", id)
	}
	return n > 0, nil
}

// SoftDelete marks a visit removed. It reports false if no live visit matched.
func (r *Repository) SoftDelete(ctx context.Context, id int64, now time.Time) (bool, error) {
	return db.SoftDelete(ctx, db.QuerierFromCtx(ctx, r.db), "visits", id, now)
}
