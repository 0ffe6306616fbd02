package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/evcraddock/hometrace/internal/db"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return d
}

func mustAddUser(t *testing.T, s *UserStore, email string, role Role) *User {
	t.Helper()
	u, err := s.Add(context.Background(), email, "", role)
	if err != nil {
		t.Fatalf("add user %s: %v", email, err)
	}
	return u
}
