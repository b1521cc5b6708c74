package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"rl-tracker/internal/domain"
)

// ErrMatchRowMissing means an upserted match could not be read back by its
// hash. That breaks the store's core invariant and is not recoverable.
var ErrMatchRowMissing = errors.New("no match row found for replay hash after upsert")

// sqlTimeLayout is the canonical played_at text form in the database.
const sqlTimeLayout = "2006-01-02 15:04:05"

// DBTX is the subset of database/sql the repositories need, satisfied by
// both *sql.DB and *sql.Tx so callers control transaction boundaries.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func formatPlayedAt(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(sqlTimeLayout)
}

func parsePlayedAt(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(sqlTimeLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullStr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullResult(v sql.NullString) *domain.Result {
	if !v.Valid {
		return nil
	}
	r := domain.Result(v.String)
	return &r
}

func nullMode(v sql.NullString) *domain.GameMode {
	if !v.Valid {
		return nil
	}
	m, ok := domain.ParseGameMode(v.String)
	if !ok {
		return nil
	}
	return &m
}
