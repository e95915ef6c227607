package postgres

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

type rowScanner interface {
	Scan(dest ...any) error
}

// validID reports whether id can be compared against a uuid column. Anything
// else cannot match a row, so callers answer "not found" without a round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
