package auth

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/db"
)

// PasskeyUser adapts a User to webauthn.User.
type PasskeyUser struct {
	user        *User
	credentials []webauthn.Credential
}

// NewPasskeyUser wraps u with its registered credentials.
func NewPasskeyUser(u *User, credentials []webauthn.Credential) *PasskeyUser {
	return &PasskeyUser{user: u, credentials: credentials}
}

// WebAuthnID is the user ID as 8 big-endian bytes. It doubles as the user
// handle returned by discoverable logins.
func (u *PasskeyUser) WebAuthnID() []byte {
	return UserHandle(u.user.ID)
}

func (u *PasskeyUser) WebAuthnName() string { return u.user.Email }

func (u *PasskeyUser) WebAuthnDisplayName() string {
	if u.user.Name != "" {
		return u.user.Name
	}
	return u.user.Email
}

func (u *PasskeyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }

// User returns the wrapped user.
func (u *PasskeyUser) User() *User { return u.user }

// UserHandle encodes a user ID as a WebAuthn user handle.
func UserHandle(userID int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(userID))
	return b
}

// UserIDFromHandle decodes a handle produced by UserHandle.
func UserIDFromHandle(handle []byte) (int64, error) {
	if len(handle) != 8 {
		return 0, fmt.Errorf("user handle has %d bytes, want 8", len(handle))
	}
	return int64(binary.BigEndian.Uint64(handle)), nil
}

// StoredCredential is a passkey credential with metadata.
type StoredCredential struct {
	ID         string              `json:"id"`
	UserID     int64               `json:"user_id"`
	Name       string              `json:"name"`
	Credential webauthn.Credential `json:"-"`
}

// PasskeyStore manages passkey credentials in SQLite.
type PasskeyStore struct {
	db *sql.DB
}

// NewPasskeyStore creates a passkey store.
func NewPasskeyStore(sqlDB *sql.DB) *PasskeyStore {
	return &PasskeyStore{db: sqlDB}
}

// Save stores a newly registered credential.
func (s *PasskeyStore) Save(ctx context.Context, userID int64, name string, cred *webauthn.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	if _, err := db.Exec(ctx, s.db, sq.Insert("passkey_credentials").
		Columns("id", "user_id", "name", "credential_json").
		Values(fmt.Sprintf("%x", cred.ID), userID, name, string(data))); err != nil {
		return db.MapError(err, "passkey", 0)
	}
	return nil
}

// ListByUser returns the user's credentials.
func (s *PasskeyStore) ListByUser(ctx context.Context, userID int64) (result []StoredCredential, err error) {
	rows, err := db.Query(ctx, s.db, sq.Select("id", "user_id", "name", "credential_json").
		From("passkey_credentials").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at"))
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for rows.Next() {
		var sc StoredCredential
		var data string
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.Name, &data); err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &sc.Credential); err != nil {
			return nil, fmt.Errorf("unmarshaling credential: %w", err)
		}
		result = append(result, sc)
	}
	return result, rows.Err()
}

// WebAuthnCredentials returns just the webauthn.Credential values for the user.
func (s *PasskeyStore) WebAuthnCredentials(ctx context.Context, userID int64) ([]webauthn.Credential, error) {
	stored, err := s.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	creds := make([]webauthn.Credential, len(stored))
	for i, sc := range stored {
		creds[i] = sc.Credential
	}
	return creds, nil
}

// Delete removes one of the user's credentials.
func (s *PasskeyStore) Delete(ctx context.Context, userID int64, id string) error {
	n, err := db.Affected(ctx, s.db, sq.Delete("passkey_credentials").Where(sq.Eq{"id": id, "user_id": userID}))
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	if n == 0 {
		return &apperr.Error{Code: apperr.CodeNotFound, Message: fmt.Sprintf("passkey %s not found", id)}
	}
	return nil
}
