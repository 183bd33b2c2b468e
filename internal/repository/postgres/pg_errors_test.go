package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mbiandou/parkflow/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestTranslateDBErr(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil passes through", nil, nil},
		{"no rows becomes not found", pgx.ErrNoRows, repository.ErrNotFound},
		{
			"unique violation becomes conflict",
			&pgconn.PgError{Code: "23505", ConstraintName: "vehicles_plate_number_key"},
			repository.ErrConflict,
		},
		{
			"active entry index becomes duplicate active entry",
			&pgconn.PgError{Code: "23505", ConstraintName: "entries_one_active_per_vehicle"},
			repository.ErrDuplicateActiveEntry,
		},
		{
			"check violation becomes capacity drift",
			&pgconn.PgError{Code: "23514", ConstraintName: "parkings_available_within_capacity"},
			repository.ErrCapacityDrift,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, translateDBErr(tt.in))
		})
	}

	unknown := errors.New("connection reset")
	assert.Equal(t, unknown, translateDBErr(unknown))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsRetryable(errors.New("plain")))
}
