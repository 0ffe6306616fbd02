package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/db"
)

const (
	apiKeyBytes  = 32
	apiKeyPrefix = "ht_"
)

// APIKey is the stored form of an API key. The raw key is never stored.
type APIKey struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Name       string     `json:"name"`
	KeyPrefix  string     `json:"key_prefix"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// APIKeyStore manages API keys in SQLite.
type APIKeyStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewAPIKeyStore creates an API key store.
func NewAPIKeyStore(sqlDB *sql.DB) *APIKeyStore {
	return &APIKeyStore{db: sqlDB, now: time.Now}
}

// Create generates a key for the user. The raw key is returned once.
func (s *APIKeyStore) Create(ctx context.Context, userID int64, name string) (string, *APIKey, error) {
	hexPart, err := randomHex(apiKeyBytes)
	if err != nil {
		return "", nil, fmt.Errorf("generating key: %w", err)
	}
	raw := apiKeyPrefix + hexPart
	prefix := raw[:8]

	now := s.now().UTC()
	id, err := db.Insert(ctx, s.db, sq.Insert("api_keys").
		Columns("user_id", "name", "key_prefix", "key_hash", "created_at").
		Values(userID, name, prefix, hashAPIKey(raw), now))
	if err != nil {
		return "", nil, db.MapError(err, "api key", 0)
	}

	return raw, &APIKey{ID: id, UserID: userID, Name: name, KeyPrefix: prefix, CreatedAt: now}, nil
}

// List returns the user's keys, newest first.
func (s *APIKeyStore) List(ctx context.Context, userID int64) (keys []APIKey, err error) {
	rows, err := db.Query(ctx, s.db, sq.Select("id", "user_id", "name", "key_prefix", "created_at", "last_used_at").
		From("api_keys").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC"))
	if err != nil {
		return nil, fmt.Errorf("querying keys: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for rows.Next() {
		var k APIKey
		var lastUsed sql.NullTime
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.CreatedAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("scanning key: %w", err)
		}
		k.LastUsedAt = db.TimePtr(lastUsed)
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Delete revokes one of the user's keys.
func (s *APIKeyStore) Delete(ctx context.Context, userID, id int64) error {
	n, err := db.Affected(ctx, s.db, sq.Delete("api_keys").Where(sq.Eq{"id": id, "user_id": userID}))
	if err != nil {
		return fmt.Errorf("deleting key: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("api key", id)
	}
	return nil
}

// Validate resolves a raw key to its owner's principal and stamps
// last_used_at. ok is false for unknown keys.
func (s *APIKeyStore) Validate(ctx context.Context, rawKey string) (p Principal, ok bool, err error) {
	hash := hashAPIKey(rawKey)

	row, err := db.QueryRow(ctx, s.db, sq.Select("u.id", "u.role").
		From("api_keys k").
		Join("users u ON u.id = k.user_id").
		Where(sq.Eq{"k.key_hash": hash}))
	if err != nil {
		return Principal{}, false, err
	}
	var role string
	if err := row.Scan(&p.UserID, &role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Principal{}, false, nil
		}
		return Principal{}, false, fmt.Errorf("validating key: %w", err)
	}
	p.Role = Role(role)

	if _, err := db.Exec(ctx, s.db, sq.Update("api_keys").
		Set("last_used_at", s.now().UTC()).
		Where(sq.Eq{"key_hash": hash})); err != nil {
		return Principal{}, false, fmt.Errorf("stamping key use: %w", err)
	}
	return p, true, nil
}

func hashAPIKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
