package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// Error kinds surfaced by the store. Callers classify with errors.Is and
// translate into transport responses (404, 409, ...); nothing is retried
// internally.
var (
	// ErrNotFound indicates the requested entity does not exist
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness constraint was violated
	ErrConflict = errors.New("conflict")

	// ErrInvalidState indicates an operation precondition is not met by
	// the current state
	ErrInvalidState = errors.New("invalid state")
)

// DomainValueError reports an enum-valued field receiving an out-of-range
// value. It is raised before the write reaches the database; the enum CHECK
// constraints catch anything that slips past.
type DomainValueError struct {
	Field string
	Value string
}

func (e *DomainValueError) Error() string {
	return fmt.Sprintf("invalid value for %s: %q", e.Field, e.Value)
}

// notFoundf wraps ErrNotFound with entity context
func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// conflictf wraps ErrConflict with entity context
func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// Postgres error codes for constraint violations
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqInvalidEnumValue    = "22P02"
)

// translateErr maps driver-level constraint failures onto the store's error
// kinds. The sqlite fallbacks keep the in-memory test schema behaving like
// the postgres one.
func translateErr(err error, entity string) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return notFoundf("%s", entity)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return conflictf("%s already exists", entity)
		case pqForeignKeyViolation:
			return notFoundf("%s references a missing row", entity)
		case pqCheckViolation, pqInvalidEnumValue:
			return fmt.Errorf("%s: %w", entity, &DomainValueError{Field: pqErr.Column, Value: pqErr.Message})
		}
		return err
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return conflictf("%s already exists", entity)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return notFoundf("%s references a missing row", entity)
	case strings.Contains(msg, "CHECK constraint failed"):
		return fmt.Errorf("%s: %w", entity, &DomainValueError{Field: entity, Value: msg})
	}

	return err
}
