package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Repo is the persistent store. The zero ext means "use the pool"; WithTx
// returns a copy whose statements run inside tx.
type Repo struct {
	DB  *sqlx.DB
	ext sqlx.ExtContext
}

var (
	ErrNotFound   = errors.New("not found")
	ErrUnique     = errors.New("unique constraint violated")
	ErrForeignKey = errors.New("foreign key constraint violated")
)

func (r Repo) WithTx(tx *sqlx.Tx) Repo {
	r.ext = tx
	return r
}

func (r Repo) x() sqlx.ExtContext {
	if r.ext != nil {
		return r.ext
	}
	return r.DB
}

// classify maps SQLite constraint failures onto the package sentinels while
// keeping the driver error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return fmt.Errorf("%w: %w", ErrUnique, err)
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return fmt.Errorf("%w: %w", ErrForeignKey, err)
	}
	return err
}

func nullableID(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func where(clauses []string) string {
	if len(clauses) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(clauses, " AND ")
}

func getOne(ctx context.Context, q sqlx.QueryerContext, dest any, query string, args ...any) error {
	return notFound(sqlx.GetContext(ctx, q, dest, query, args...))
}

func selectAll(ctx context.Context, q sqlx.QueryerContext, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}
