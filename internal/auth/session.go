package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/evcraddock/hometrace/internal/db"
)

const (
	sessionExpiry = 30 * 24 * time.Hour
	cookieName    = "ht_session"
)

// ErrNoSession is returned when a request carries no usable session.
var ErrNoSession = errors.New("no valid session")

// SessionStore manages browser sessions in SQLite.
type SessionStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionStore creates a session store.
func NewSessionStore(sqlDB *sql.DB) *SessionStore {
	return &SessionStore{db: sqlDB, now: time.Now}
}

// Create starts a session for the user and sets the cookie.
func (s *SessionStore) Create(ctx context.Context, w http.ResponseWriter, userID int64) error {
	id, err := randomHex(32)
	if err != nil {
		return fmt.Errorf("generating session ID: %w", err)
	}

	expiresAt := s.now().Add(sessionExpiry).UTC()
	if _, err := db.Exec(ctx, s.db, sq.Insert("sessions").
		Columns("id", "user_id", "expires_at").
		Values(id, userID, expiresAt)); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    id,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Validate resolves the session cookie to its user's principal.
func (s *SessionStore) Validate(r *http.Request) (Principal, error) {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return Principal{}, ErrNoSession
	}

	ctx := r.Context()
	row, err := db.QueryRow(ctx, s.db, sq.Select("u.id", "u.role", "s.expires_at").
		From("sessions s").
		Join("users u ON u.id = s.user_id").
		Where(sq.Eq{"s.id": cookie.Value}))
	if err != nil {
		return Principal{}, err
	}

	var p Principal
	var role string
	var expiresAt time.Time
	if err := row.Scan(&p.UserID, &role, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Principal{}, ErrNoSession
		}
		return Principal{}, fmt.Errorf("querying session: %w", err)
	}
	p.Role = Role(role)

	if s.now().After(expiresAt) {
		if _, err := db.Exec(ctx, s.db, sq.Delete("sessions").Where(sq.Eq{"id": cookie.Value})); err != nil {
			return Principal{}, fmt.Errorf("deleting expired session: %w", err)
		}
		return Principal{}, ErrNoSession
	}

	return p, nil
}

// Destroy removes the session and clears the cookie.
func (s *SessionStore) Destroy(w http.ResponseWriter, r *http.Request) error {
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return nil
	}

	if _, err := db.Exec(r.Context(), s.db, sq.Delete("sessions").Where(sq.Eq{"id": cookie.Value})); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Cleanup removes expired sessions and reports how many were deleted.
func (s *SessionStore) Cleanup(ctx context.Context) (int64, error) {
	n, err := db.Affected(ctx, s.db, sq.Delete("sessions").Where(sq.Lt{"expires_at": s.now().UTC()}))
	if err != nil {
		return 0, fmt.Errorf("cleaning up sessions: %w", err)
	}
	return n, nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
