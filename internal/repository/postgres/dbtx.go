package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"navfund/pkg/errors"
)

// DBTX is a common interface for *sqlx.DB and *sqlx.Tx
// This allows repositories to work with both regular connections and transactions
// enabling full transactional isolation in tests
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row

	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// PostgreSQL error codes mapped to domain sentinels
const (
	pqUniqueViolation = "23505"
	pqCheckViolation  = "23514"
)

// mapError converts driver errors into domain sentinels where one applies.
func mapError(err error, what string) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return errors.Wrapf(errors.ErrAlreadyExists, "%s: %s", what, pqErr.Constraint)
		case pqCheckViolation:
			return errors.Wrapf(errors.ErrArithmeticOverflow, "%s: %s", what, pqErr.Constraint)
		}
	}
	return errors.Wrap(err, what)
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}
