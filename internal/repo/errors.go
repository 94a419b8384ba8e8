package repo

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("repo: not found")
	// ErrConflict is returned for unique and exclusion violations.
	ErrConflict = errors.New("repo: conflict")
	// ErrConstraint is returned for foreign key and check violations.
	ErrConstraint = errors.New("repo: constraint violation")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505", "23P01":
			return errors.Join(ErrConflict, err)
		case "23503", "23514":
			return errors.Join(ErrConstraint, err)
		}
	}
	return err
}
