package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/veilpoll/veilpoll/pkg/db"
)

const uniqueViolation = "23505"

// mapError translates driver errors into the store error taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return db.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == uniqueViolation {
			return db.ErrDuplicate
		}
		if strings.Contains(pgErr.Message, "selection limit reached") {
			return db.ErrSelectionLimit
		}
	}
	return err
}
