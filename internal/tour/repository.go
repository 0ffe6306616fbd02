package tour

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/evcraddock/hometrace/internal/db"
)

// Repository provides data access for tours and their stops. Methods run
// on the transaction carried by ctx when there is one.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a tour repository.
func NewRepository(sqlDB *sql.DB) *Repository {
	return &Repository{db: sqlDB}
}

var tourColumns = []string{
	"id", "name", "realtor_id", "buyer_id", "status", "scheduled_date", "notes", "created_at", "updated_at",
}

var stopColumns = []string{
	"id", "tour_id", "house_id", "visit_id", "order_index", "estimated_time", "notes", "created_at",
}

func scanTour(row interface{ Scan(...any) error }) (*Tour, error) {
	var t Tour
	var status string
	var buyerID sql.NullInt64
	var scheduled sql.NullTime
	if err := row.Scan(&t.ID, &t.Name, &t.RealtorID, &buyerID, &status, &scheduled, &t.Notes, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = Status(status)
	t.BuyerID = db.Int64Ptr(buyerID)
	t.ScheduledDate = db.TimePtr(scheduled)
	return &t, nil
}

func scanStop(row interface{ Scan(...any) error }) (*Stop, error) {
	var s Stop
	var visitID sql.NullInt64
	var estimated sql.NullTime
	if err := row.Scan(&s.ID, &s.TourID, &s.HouseID, &visitID, &s.OrderIndex, &estimated, &s.Notes, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.VisitID = db.Int64Ptr(visitID)
	s.EstimatedTime = db.TimePtr(estimated)
	return &s, nil
}

// Insert stores a new tour.
func (r *Repository) Insert(ctx context.Context, t *Tour, now time.Time) (*Tour, error) {
	now = now.UTC()
	id, err := db.Insert(ctx, db.QuerierFromCtx(ctx, r.db), sq.Insert("tours").
		Columns("name", "realtor_id", "buyer_id", "status", "scheduled_date", "notes", "created_at", "updated_at").
		Values(t.Name, t.RealtorID, t.BuyerID, string(t.Status), db.NullTime(t.ScheduledDate), t.Notes, now, now))
	if err != nil {
		return nil, db.MapError(err, "tour", 0)
	}
	return r.Get(ctx, id)
}

// Get returns a live tour without its stops.
func (r *Repository) Get(ctx context.Context, id int64) (*Tour, error) {
	row, err := db.QueryRow(ctx, db.QuerierFromCtx(ctx, r.db), db.Live("tours", tourColumns...).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	t, err := scanTour(row)
	if err != nil {
		return nil, db.MapError(err, "tour", id)
	}
	return t, nil
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	RealtorID int64
	BuyerID   int64
	Status    Status
}

// List returns live tours, soonest scheduled first and unscheduled last.
func (r *Repository) List(ctx context.Context, f Filter) (tours []*Tour, err error) {
	b := db.Live("tours", tourColumns...).OrderBy("scheduled_date IS NULL", "scheduled_date", "id")
	if f.RealtorID != 0 {
		b = b.Where(sq.Eq{"realtor_id": f.RealtorID})
	}
	if f.BuyerID != 0 {
		b = b.Where(sq.Eq{"buyer_id": f.BuyerID})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": string(f.Status)})
	}

	rows, err := db.Query(ctx, db.QuerierFromCtx(ctx, r.db), b)
	if err != nil {
		return nil, fmt.Errorf("listing tours: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for rows.Next() {
		t, err := scanTour(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tour: %w", err)
		}
		tours = append(tours, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tours: %w", err)
	}
	return tours, nil
}

// Transition moves a live tour from one status to another. It reports
// false when the stored status is no longer from.
func (r *Repository) Transition(ctx context.Context, id int64, from, to Status, now time.Time) (bool, error) {
	n, err := db.Affected(ctx, db.QuerierFromCtx(ctx, r.db), sq.Update("tours").
		Set("status", string(to)).
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": id, "status": string(from), "deleted_at": nil}))
	if err != nil {
		return false, db.MapError(err, "tour", id)
	}
	return n > 0, nil
}

// Touch bumps a tour's updated_at.
func (r *Repository) Touch(ctx context.Context, id int64, now time.Time) error {
	if _, err := db.Exec(ctx, db.QuerierFromCtx(ctx, r.db), sq.Update("tours").
		Set("updated_at", now.UTC()).
		Where(sq.Eq{"id": id})); err != nil {
		return fmt.Errorf("touching tour %d: %w", id, err)
	}
	return nil
}

// SoftDelete marks a tour removed.
func (r *Repository) SoftDelete(ctx context.Context, id int64, now time.Time) (bool, error) {
	return db.SoftDelete(ctx, db.QuerierFromCtx(ctx, r.db), "tours", id, now)
}

// NextOrderIndex returns one past the highest order_index ever used on the
// tour, counting removed stops.
func (r *Repository) NextOrderIndex(ctx context.Context, tourID int64) (int, error) {
	row, err := db.QueryRow(ctx, db.QuerierFromCtx(ctx, r.db),
		sq.Select("COALESCE(MAX(order_index), 0) + 1").From("tour_stops").Where(sq.Eq{"tour_id": tourID}))
	if err != nil {
		return 0, err
	}
	var next int
	if err := row.Scan(&next); err != nil {
		return 0, fmt.Errorf("reading next order index: %w", err)
	}
	return next, nil
}

// InsertStop stores a stop.
func (r *Repository) InsertStop(ctx context.Context, s *Stop, now time.Time) (*Stop, error) {
	id, err := db.Insert(ctx, db.QuerierFromCtx(ctx, r.db), sq.Insert("tour_stops").
		Columns("tour_id", "house_id", "visit_id", "order_index", "estimated_time", "notes", "created_at").
		Values(s.TourID, s.HouseID, s.VisitID, s.OrderIndex, db.NullTime(s.EstimatedTime), s.Notes, now.UTC()))
	if err != nil {
		return nil, db.MapError(err, "tour stop", 0)
	}
	return r.GetStop(ctx, id)
}

// GetStop returns a live stop.
func (r *Repository) GetStop(ctx context.Context, id int64) (*Stop, error) {
	row, err := db.QueryRow(ctx, db.QuerierFromCtx(ctx, r.db), db.Live("tour_stops", stopColumns...).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	s, err := scanStop(row)
	if err != nil {
		return nil, db.MapError(err, "tour stop", id)
	}
	return s, nil
}

// Stops returns a tour's live stops in order.
func (r *Repository) Stops(ctx context.Context, tourID int64) (stops []*Stop, err error) {
	rows, err := db.Query(ctx, db.QuerierFromCtx(ctx, r.db),
		db.Live("tour_stops", stopColumns...).Where(sq.Eq{"tour_id": tourID}).OrderBy("order_index"))
	if err != nil {
		return nil, fmt.Errorf("listing stops: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for rows.Next() {
		s, err := scanStop(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning stop: %w", err)
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// SoftDeleteStop marks a stop removed.
func (r *Repository) SoftDeleteStop(ctx context.Context, id int64, now time.Time) (bool, error) {
	return db.SoftDelete(ctx, db.QuerierFromCtx(ctx, r.db), "tour_stops", id, now)
}

// LinkVisit records the visit made at a live stop.
func (r *Repository) LinkVisit(ctx context.Context, stopID, visitID int64) error {
	n, err := db.Affected(ctx, db.QuerierFromCtx(ctx, r.db), sq.Update("tour_stops").
		Set("visit_id", visitID).
		Where(sq.Eq{"id": stopID, "deleted_at": nil}))
	if err != nil {
		return db.MapError(err, "tour stop", stopID)
	}
	if n == 0 {
		return db.MapError(sql.ErrNoRows, "tour stop", stopID)
	}
	return nil
}
