package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/db"
)

// User is a person who can log in.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Principal returns the principal a session for u resolves to.
func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Role: u.Role}
}

// UserStore manages users in SQLite.
type UserStore struct {
	db         *sql.DB
	adminEmail string
}

// NewUserStore creates a user store. adminEmail may be empty.
func NewUserStore(sqlDB *sql.DB, adminEmail string) *UserStore {
	return &UserStore{db: sqlDB, adminEmail: normalizeEmail(adminEmail)}
}

var userColumns = []string{"id", "email", "name", "phone", "role", "created_at"}

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Phone, &role, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

// EnsureAdmin makes sure the configured admin email exists with the admin role.
func (s *UserStore) EnsureAdmin(ctx context.Context) error {
	if s.adminEmail == "" {
		return nil
	}

	_, err := db.Exec(ctx, s.db, sq.Insert("users").
		Columns("email", "role").
		Values(s.adminEmail, string(RoleAdmin)).
		Suffix("ON CONFLICT (email) DO UPDATE SET role = excluded.role"))
	if err != nil {
		return fmt.Errorf("ensuring admin user: %w", err)
	}
	return nil
}

// Add creates a user with the given role.
func (s *UserStore) Add(ctx context.Context, email, name string, role Role) (*User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperr.ValidationFields(map[string]string{"email": "required"})
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, apperr.ValidationFields(map[string]string{"role": "oneof buyer realtor admin"})
	}

	id, err := db.Insert(ctx, s.db, sq.Insert("users").
		Columns("email", "name", "role").
		Values(email, strings.TrimSpace(name), string(role)))
	if err != nil {
		return nil, db.MapError(err, "user", 0)
	}
	return s.GetByID(ctx, id)
}

// GetByID returns a user by ID.
func (s *UserStore) GetByID(ctx context.Context, id int64) (*User, error) {
	row, err := db.QueryRow(ctx, s.db, sq.Select(userColumns...).From("users").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		return nil, db.MapError(err, "user", id)
	}
	return u, nil
}

// GetByEmail returns a user by email, case-insensitively.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	row, err := db.QueryRow(ctx, s.db, sq.Select(userColumns...).From("users").
		Where(sq.Eq{"email": normalizeEmail(email)}))
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user", 0)
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// IsAuthorized reports whether email belongs to a known user.
func (s *UserStore) IsAuthorized(ctx context.Context, email string) bool {
	_, err := s.GetByEmail(ctx, email)
	return err == nil
}

// List returns all users ordered by email.
func (s *UserStore) List(ctx context.Context) (users []*User, err error) {
	rows, err := db.Query(ctx, s.db, sq.Select(userColumns...).From("users").OrderBy("email"))
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Delete removes a user. Users that still own visits, suggestions or tours
// cannot be removed.
func (s *UserStore) Delete(ctx context.Context, id int64) error {
	n, err := db.Affected(ctx, s.db, sq.Delete("users").Where(sq.Eq{"id": id}))
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintForeignKey {
			return apperr.Validation("user %d still has houses, visits or tours", id)
		}
		return fmt.Errorf("deleting user: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("user", id)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
