package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrDuplicate marks a unique-constraint violation. Services map it to a
// conflict instead of surfacing the raw SQL error when concurrent inserts
// race past an existence check.
var ErrDuplicate = errors.New("duplicate record")

const uniqueViolationCode = "23505"

func translateError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrDuplicate
	}
	return err
}
