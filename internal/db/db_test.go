package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/evcraddock/hometrace/internal/apperr"
)

func TestOpenCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "hometrace.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file: %v", err)
	}
}

func TestConnectionPragmas(t *testing.T) {
	d := openTestDB(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"foreign_keys", "1"},
		{"busy_timeout", "5000"},
	}
	for _, tt := range tests {
		t.Run(tt.pragma, func(t *testing.T) {
			var got string
			if err := d.QueryRow("PRAGMA " + tt.pragma).Scan(&got); err != nil {
				t.Fatalf("PRAGMA %s: %v", tt.pragma, err)
			}
			if got != tt.want {
				t.Errorf("%s = %q, want %q", tt.pragma, got, tt.want)
			}
		})
	}
}

func TestMigrations(t *testing.T) {
	tests := []struct {
		table string
		cols  []string
	}{
		{"users", []string{"id", "email", "name", "phone", "role", "created_at"}},
		{"sessions", []string{"id", "user_id", "expires_at", "created_at"}},
		{"visits", []string{"id", "house_id", "buyer_id", "suggestion_id", "status", "scheduled_at", "started_at", "completed_at", "overall_impression", "would_buy", "notes", "created_at", "updated_at", "deleted_at"}},
		{"visit_suggestions", []string{"id", "house_id", "buyer_id", "suggested_by_realtor_id", "status", "suggested_at", "message", "rejection_reason", "created_at", "updated_at", "deleted_at"}},
		{"tours", []string{"id", "name", "realtor_id", "buyer_id", "status", "scheduled_date", "notes", "created_at", "updated_at", "deleted_at"}},
		{"tour_stops", []string{"id", "tour_id", "house_id", "visit_id", "order_index", "estimated_time", "notes", "created_at", "deleted_at"}},
	}

	d := openTestDB(t)

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			cols := tableColumns(t, d, tt.table)
			if len(cols) != len(tt.cols) {
				t.Fatalf("got %d columns, want %d: %v", len(cols), len(tt.cols), cols)
			}
			for i, want := range tt.cols {
				if cols[i] != want {
					t.Errorf("column %d = %q, want %q", i, cols[i], want)
				}
			}
		})
	}
}
func TestReopenSkipsAppliedMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hometrace.db")
	for i := range 2 {
		d, err := Open(path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if err := d.Close(); err != nil {
			t.Fatalf("close #%d: %v", i+1, err)
		}
	}

	d2, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = d2.Close() })

	var applied int
	if err := d2.QueryRow("SELECT COUNT(*) FROM goose_db_version WHERE version_id = 1").Scan(&applied); err != nil {
		t.Fatalf("query goose_db_version: %v", err)
	}
	if applied != 1 {
		t.Errorf("migration 1 recorded %d times, want 1", applied)
	}
}


func TestRoleConstraint(t *testing.T) {
	d := openTestDB(t)

	tests := []struct {
		role    string
		wantErr bool
	}{
		{"buyer", false},
		{"realtor", false},
		{"admin", false},
		{"landlord", true},
		{"", true},
	}

	for i, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			_, err := d.Exec(`INSERT INTO users (email, role) VALUES (?, ?)`, fmt.Sprintf("u%d@example.com", i), tt.role)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLiveFiltersSoftDeleted(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 3; i++ {
		id, err := Insert(ctx, d, sq.Insert("houses").Columns("address").Values(fmt.Sprintf("%d Elm St", i)))
		if err != nil {
			t.Fatalf("insert house: %v", err)
		}
		ids = append(ids, id)
	}

	ok, err := SoftDelete(ctx, d, "houses", ids[1], time.Now())
	if err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if !ok {
		t.Fatal("expected soft delete to report a row")
	}

	ok, err = SoftDelete(ctx, d, "houses", ids[1], time.Now())
	if err != nil {
		t.Fatalf("second soft delete: %v", err)
	}
	if ok {
		t.Error("expected second soft delete to find no live row")
	}

	var count int
	row, err := QueryRow(ctx, d, Live("houses", "COUNT(*)"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := row.Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("live count = %d, want 2", count)
	}
}

func TestRunInTxRollsBack(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	tm := NewTxManager(d)

	boom := errors.New("boom")
	err := tm.RunInTx(ctx, func(ctx context.Context) error {
		q := QuerierFromCtx(ctx, d)
		if _, err := Insert(ctx, q, sq.Insert("houses").Columns("address").Values("1 Rollback Rd")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}

	var count int
	if err := d.QueryRow("SELECT COUNT(*) FROM houses").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d after rollback, want 0", count)
	}
}

func TestRunInTxCommits(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	tm := NewTxManager(d)

	err := tm.RunInTx(ctx, func(ctx context.Context) error {
		_, err := Insert(ctx, QuerierFromCtx(ctx, d), sq.Insert("houses").Columns("address").Values("1 Commit Ct"))
		return err
	})
	if err != nil {
		t.Fatalf("run in tx: %v", err)
	}

	var count int
	if err := d.QueryRow("SELECT COUNT(*) FROM houses").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d after commit, want 1", count)
	}
}

func TestMapError(t *testing.T) {
	d := openTestDB(t)

	if _, err := d.Exec(`INSERT INTO users (email, role) VALUES ('dup@example.com', 'buyer')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := d.Exec(`INSERT INTO users (email, role) VALUES ('dup@example.com', 'buyer')`)
	if got := apperr.CodeOf(MapError(err, "user", 0)); got != apperr.CodeDuplicate {
		t.Errorf("unique violation code = %q, want %q", got, apperr.CodeDuplicate)
	}

	_, err = d.Exec(`INSERT INTO sessions (id, user_id, expires_at) VALUES ('s', 999, ?)`, time.Now())
	if got := apperr.CodeOf(MapError(err, "session", 0)); got != apperr.CodeValidation {
		t.Errorf("foreign key violation code = %q, want %q", got, apperr.CodeValidation)
	}

	if got := apperr.CodeOf(MapError(sql.ErrNoRows, "visit", 7)); got != apperr.CodeNotFound {
		t.Errorf("no rows code = %q, want %q", got, apperr.CodeNotFound)
	}
}

func TestDefaultPath(t *testing.T) {
	p, err := DefaultPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filepath.Base(p) != "hometrace.db" {
		t.Errorf("expected filename hometrace.db, got %s", filepath.Base(p))
	}

	dir := filepath.Base(filepath.Dir(p))
	if dir != "ht" {
		t.Errorf("expected directory ht, got %s", dir)
	}
}

// openTestDB creates a temporary database for testing.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hometrace.db")
	d, err := Open(path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Close(); err != nil {
			t.Errorf("close test db: %v", err)
		}
	})
	return d
}

// tableColumns returns column names for a table using PRAGMA table_info.
func tableColumns(t *testing.T, d *sql.DB, table string) []string {
	t.Helper()
	rows, err := d.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		t.Fatalf("pragma table_info(%s): %v", table, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			t.Errorf("close rows: %v", err)
		}
	}()

	var cols []string
	for rows.Next() {
		var cid int
		var name, typ string
		var notnull int
		var dflt *string
		var pk int
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			t.Fatalf("scan: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}
