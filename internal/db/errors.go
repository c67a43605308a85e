package db

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres and PostgREST codes the application reacts to.
const (
	CodeUndefinedColumn   = "42703"
	CodeSchemaCacheColumn = "PGRST204"
	CodeCheckViolation    = "23514"
	CodeUniqueViolation   = "23505"
	CodeForeignKey        = "23503"
	CodeInvalidText       = "22P02"
)

// StoreError is a store rejection in a driver-independent shape.
type StoreError struct {
	Code       string
	Message    string
	Column     string
	Constraint string
	Table      string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error %s: %s", e.Code, e.Message)
}

var quotedColumn = regexp.MustCompile(`column "([^"]+)"|'([^']+)' column`)

// Normalize converts driver errors into *StoreError. Other errors pass through.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return se
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	out := &StoreError{
		Code:       pgErr.Code,
		Message:    pgErr.Message,
		Column:     pgErr.ColumnName,
		Constraint: pgErr.ConstraintName,
		Table:      pgErr.TableName,
	}
	if out.Column == "" {
		out.Column = ColumnFromMessage(pgErr.Message)
	}
	return out
}

// ColumnFromMessage extracts the column named in an unknown-column message,
// e.g. `column "required_skills" of relation "jobs" does not exist` or
// `Could not find the 'required_skills' column of 'jobs' in the schema cache`.
func ColumnFromMessage(msg string) string {
	m := quotedColumn.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

// AsStoreError unwraps err into a *StoreError.
func AsStoreError(err error) (*StoreError, bool) {
	var se *StoreError
	if errors.As(Normalize(err), &se) {
		return se, true
	}
	return nil, false
}

// IsUniqueViolation reports a unique index rejection.
func IsUniqueViolation(err error) bool {
	se, ok := AsStoreError(err)
	return ok && se.Code == CodeUniqueViolation
}

// IsInvalidText reports a value the column type could not parse, such as a
// malformed uuid.
func IsInvalidText(err error) bool {
	se, ok := AsStoreError(err)
	return ok && se.Code == CodeInvalidText
}
