package store

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestTranslateError(t *testing.T) {
	unique := &pq.Error{Code: pgUniqueViolation, Constraint: "users_email_key"}
	err := translateError(unique)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "users_email_key")

	fk := &pq.Error{Code: pgForeignKeyViolation, Constraint: "contributors_user_id_fkey"}
	assert.ErrorIs(t, translateError(fk), ErrInvalidReference)

	other := &pq.Error{Code: "42P01"}
	assert.Equal(t, error(other), translateError(other))

	plain := errors.New("boom")
	assert.Equal(t, plain, translateError(plain))
}
