package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUndefinedColumn(t *testing.T) {
	err := fmt.Errorf("insert job: %w", &pgconn.PgError{
		Code:    CodeUndefinedColumn,
		Message: `column "required_skills" of relation "jobs" does not exist`,
	})

	se, ok := AsStoreError(err)
	require.True(t, ok)
	assert.Equal(t, CodeUndefinedColumn, se.Code)
	assert.Equal(t, "required_skills", se.Column)
}

func TestNormalizeCheckViolation(t *testing.T) {
	se, ok := AsStoreError(&pgconn.PgError{
		Code:           CodeCheckViolation,
		Message:        `new row for relation "jobs" violates check constraint "jobs_budget_type_check"`,
		ConstraintName: "jobs_budget_type_check",
		TableName:      "jobs",
	})
	require.True(t, ok)
	assert.Equal(t, "jobs_budget_type_check", se.Constraint)
	assert.Equal(t, "jobs", se.Table)
}

func TestColumnFromSchemaCacheMessage(t *testing.T) {
	assert.Equal(t, "poster_id", ColumnFromMessage("Could not find the 'poster_id' column of 'jobs' in the schema cache"))
	assert.Equal(t, "", ColumnFromMessage("permission denied"))
}

func TestNormalizePassesForeignErrors(t *testing.T) {
	plain := errors.New("dial tcp: connection refused")
	assert.Same(t, plain, Normalize(plain))
	_, ok := AsStoreError(plain)
	assert.False(t, ok)
	assert.Nil(t, Normalize(nil))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: CodeUniqueViolation}))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: CodeForeignKey}))
}
