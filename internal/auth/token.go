package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/evcraddock/hometrace/internal/db"
)

const tokenExpiry = 15 * time.Minute

// ErrInvalidToken covers unknown, used and expired magic link tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenStore manages single-use magic link tokens.
type TokenStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewTokenStore creates a token store.
func NewTokenStore(sqlDB *sql.DB) *TokenStore {
	return &TokenStore{db: sqlDB, now: time.Now}
}

// Create issues a token for email and returns it.
func (s *TokenStore) Create(ctx context.Context, email string) (string, error) {
	token, err := randomHex(32)
	if err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}

	if _, err := db.Exec(ctx, s.db, sq.Insert("auth_tokens").
		Columns("token", "email", "expires_at").
		Values(token, normalizeEmail(email), s.now().Add(tokenExpiry).UTC())); err != nil {
		return "", fmt.Errorf("storing token: %w", err)
	}
	return token, nil
}

// Redeem consumes a token and returns its email. A token works once.
func (s *TokenStore) Redeem(ctx context.Context, token string) (string, error) {
	row, err := db.QueryRow(ctx, s.db, sq.Select("email", "expires_at").
		From("auth_tokens").
		Where(sq.Eq{"token": token, "used": 0}))
	if err != nil {
		return "", err
	}

	var email string
	var expiresAt time.Time
	if err := row.Scan(&email, &expiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("querying token: %w", err)
	}
	if s.now().After(expiresAt) {
		return "", ErrInvalidToken
	}

	// Conditional so two concurrent redemptions cannot both succeed.
	n, err := db.Affected(ctx, s.db, sq.Update("auth_tokens").
		Set("used", 1).
		Where(sq.Eq{"token": token, "used": 0}))
	if err != nil {
		return "", fmt.Errorf("marking token used: %w", err)
	}
	if n == 0 {
		return "", ErrInvalidToken
	}
	return email, nil
}

// Cleanup removes expired tokens and reports how many were deleted.
func (s *TokenStore) Cleanup(ctx context.Context) (int64, error) {
	n, err := db.Affected(ctx, s.db, sq.Delete("auth_tokens").Where(sq.Lt{"expires_at": s.now().UTC()}))
	if err != nil {
		return 0, fmt.Errorf("cleaning up tokens: %w", err)
	}
	return n, nil
}
