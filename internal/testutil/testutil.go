// Package testutil builds database fixtures for package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/db"
)

var seq atomic.Int64

// OpenDB opens a migrated database in a temp dir, closed at cleanup.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "hometrace.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return d
}

// User inserts a user with the role and returns its principal.
func User(t testing.TB, d *sql.DB, role auth.Role) auth.Principal {
	t.Helper()
	n := seq.Add(1)
	id, err := db.Insert(context.Background(), d, sq.Insert("users").
		Columns("email", "name", "role").
		Values(fmt.Sprintf("%s%d@example.com", role, n), fmt.Sprintf("%s %d", role, n), string(role)))
	require.NoError(t, err)
	return auth.Principal{UserID: id, Role: role}
}

// House inserts a live house and returns its ID.
func House(t testing.TB, d *sql.DB, addedBy auth.Principal) int64 {
	t.Helper()
	n := seq.Add(1)
	id, err := db.Insert(context.Background(), d, sq.Insert("houses").
		Columns("address", "added_by").
		Values(fmt.Sprintf("%d Test Lane", n), addedBy.UserID))
	require.NoError(t, err)
	return id
}

// Connect links a realtor and a buyer.
func Connect(t testing.TB, d *sql.DB, realtor, buyer auth.Principal) {
	t.Helper()
	_, err := db.Insert(context.Background(), d, sq.Insert("connections").
		Columns("realtor_id", "buyer_id").
		Values(realtor.UserID, buyer.UserID))
	require.NoError(t, err)
}

// Clock is a settable time source.
type Clock struct {
	now atomic.Int64
}

// NewClock returns a clock stopped at t.
func NewClock(t time.Time) *Clock {
	c := &Clock{}
	c.Set(t)
	return c
}

// Now returns the current clock time.
func (c *Clock) Now() time.Time { return time.Unix(0, c.now.Load()).UTC() }

// Set moves the clock to t.
func (c *Clock) Set(t time.Time) { c.now.Store(t.UnixNano()) }

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) { c.now.Add(int64(d)) }
