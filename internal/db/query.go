package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/mattn/go-sqlite3"

	"github.com/evcraddock/hometrace/internal/apperr"
)

// Live starts a SELECT over the rows of table that are not soft-deleted.
// Every read of a soft-deletable table goes through here.
func Live(table string, columns ...string) sq.SelectBuilder {
	return sq.Select(columns...).From(table).Where(sq.Eq{table + ".deleted_at": nil})
}

// QueryRow runs a built SELECT expected to return at most one row.
func QueryRow(ctx context.Context, q Querier, b sq.Sqlizer) (*sql.Row, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.QueryRowContext(ctx, query, args...), nil
}

// Query runs a built SELECT.
func Query(ctx context.Context, q Querier, b sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.QueryContext(ctx, query, args...)
}

// Exec runs a built INSERT, UPDATE or DELETE.
func Exec(ctx context.Context, q Querier, b sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	return q.ExecContext(ctx, query, args...)
}

// Insert runs a built INSERT and returns the new row ID.
func Insert(ctx context.Context, q Querier, b sq.InsertBuilder) (int64, error) {
	res, err := Exec(ctx, q, b)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting insert id: %w", err)
	}
	return id, nil
}

// Affected runs a built statement and returns the number of rows changed.
func Affected(ctx context.Context, q Querier, b sq.Sqlizer) (int64, error) {
	res, err := Exec(ctx, q, b)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// SoftDelete stamps deleted_at on a live row. It reports false if no live
// row with that ID exists.
func SoftDelete(ctx context.Context, q Querier, table string, id int64, now time.Time) (bool, error) {
	n, err := Affected(ctx, q, sq.Update(table).
		Set("deleted_at", now.UTC()).
		Where(sq.Eq{"id": id, "deleted_at": nil}))
	if err != nil {
		return false, fmt.Errorf("soft-deleting %s %d: %w", table, id, err)
	}
	return n > 0, nil
}

// MapError converts driver errors into application errors.
// sql.ErrNoRows becomes NotFound, unique violations become Duplicate and
// foreign key or check violations become Validation. Anything else is
// wrapped with the entity for context.
func MapError(err error, entity string, id int64) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %d: %w", entity, id, err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity, id)
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return apperr.Duplicate("%s already exists", entity)
		case sqlite3.ErrConstraintForeignKey:
			return apperr.Validation("%s references a record that does not exist", entity)
		case sqlite3.ErrConstraintCheck:
			return apperr.Validation("%s has an invalid value", entity)
		}
	}

	return fmt.Errorf("%s %d: %w", entity, id, err)
}

// NullTime converts an optional time into a driver value.
func NullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// TimePtr returns the time held by a sql.NullTime, or nil.
func TimePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

// StringPtr returns the string held by a sql.NullString, or nil.
func StringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// Int64Ptr returns the value held by a sql.NullInt64, or nil.
func Int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
