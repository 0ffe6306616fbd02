// Package connection manages realtor to buyer relationships.
package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/db"
)

// Connection links a realtor to a buyer they work with.
type Connection struct {
	ID        int64     `json:"id"`
	RealtorID int64     `json:"realtor_id"`
	BuyerID   int64     `json:"buyer_id"`
	CreatedAt time.Time `json:"created_at"`
}

var columns = []string{"id", "realtor_id", "buyer_id", "created_at"}

// Store persists connections.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a connection store.
func NewStore(sqlDB *sql.DB) *Store {
	return &Store{db: sqlDB, now: time.Now}
}

// Create connects realtorID to buyerID. Realtors may only connect
// themselves; admins may connect anyone.
func (s *Store) Create(ctx context.Context, p auth.Principal, realtorID, buyerID int64) (*Connection, error) {
	switch {
	case p.IsAdmin():
	case p.Role == auth.RoleRealtor && p.UserID == realtorID:
	default:
		return nil, apperr.Forbidden("only the realtor or an admin can create this connection")
	}

	if err := s.requireRole(ctx, realtorID, auth.RoleRealtor, "realtor_id"); err != nil {
		return nil, err
	}
	if err := s.requireRole(ctx, buyerID, auth.RoleBuyer, "buyer_id"); err != nil {
		return nil, err
	}

	id, err := db.Insert(ctx, db.QuerierFromCtx(ctx, s.db), sq.Insert("connections").
		Columns("realtor_id", "buyer_id").
		Values(realtorID, buyerID))
	if err != nil {
		return nil, db.MapError(err, "connection", 0)
	}
	return s.get(ctx, id)
}

func (s *Store) requireRole(ctx context.Context, userID int64, role auth.Role, field string) error {
	row, err := db.QueryRow(ctx, db.QuerierFromCtx(ctx, s.db),
		sq.Select("role").From("users").Where(sq.Eq{"id": userID}))
	if err != nil {
		return err
	}
	var got string
	if err := row.Scan(&got); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("user", userID)
		}
		return fmt.Errorf("checking user role: %w", err)
	}
	if auth.Role(got) != role {
		return apperr.ValidationFields(map[string]string{field: fmt.Sprintf("user %d is not a %s", userID, role)})
	}
	return nil
}

func (s *Store) get(ctx context.Context, id int64) (*Connection, error) {
	row, err := db.QueryRow(ctx, db.QuerierFromCtx(ctx, s.db), db.Live("connections", columns...).Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	var c Connection
	if err := row.Scan(&c.ID, &c.RealtorID, &c.BuyerID, &c.CreatedAt); err != nil {
		return nil, db.MapError(err, "connection", id)
	}
	return &c, nil
}

// Exists reports whether a live connection links the realtor and buyer.
func (s *Store) Exists(ctx context.Context, realtorID, buyerID int64) (bool, error) {
	row, err := db.QueryRow(ctx, db.QuerierFromCtx(ctx, s.db),
		db.Live("connections", "COUNT(*)").Where(sq.Eq{"realtor_id": realtorID, "buyer_id": buyerID}))
	if err != nil {
		return false, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("checking connection: %w", err)
	}
	return n > 0, nil
}

// BuyerIDs returns the buyers connected to a realtor.
func (s *Store) BuyerIDs(ctx context.Context, realtorID int64) (ids []int64, err error) {
	rows, err := db.Query(ctx, db.QuerierFromCtx(ctx, s.db),
		db.Live("connections", "buyer_id").Where(sq.Eq{"realtor_id": realtorID}).OrderBy("buyer_id"))
	if err != nil {
		return nil, fmt.Errorf("listing connected buyers: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning buyer id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List returns the caller's connections. Admins see all of them.
func (s *Store) List(ctx context.Context, p auth.Principal) (conns []*Connection, err error) {
	b := db.Live("connections", columns...).OrderBy("created_at DESC", "id DESC")
	switch p.Role {
	case auth.RoleAdmin:
	case auth.RoleRealtor:
		b = b.Where(sq.Eq{"realtor_id": p.UserID})
	default:
		b = b.Where(sq.Eq{"buyer_id": p.UserID})
	}

	rows, err := db.Query(ctx, db.QuerierFromCtx(ctx, s.db), b)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for rows.Next() {
		var c Connection
		if err := rows.Scan(&c.ID, &c.RealtorID, &c.BuyerID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		conns = append(conns, &c)
	}
	return conns, rows.Err()
}

// Remove soft-deletes a connection. Either party or an admin may remove it.
func (s *Store) Remove(ctx context.Context, p auth.Principal, id int64) error {
	c, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && p.UserID != c.RealtorID && p.UserID != c.BuyerID {
		return apperr.Forbidden("connection %d belongs to other users", id)
	}
	ok, err := db.SoftDelete(ctx, db.QuerierFromCtx(ctx, s.db), "connections", id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("connection", id)
	}
	return nil
}
