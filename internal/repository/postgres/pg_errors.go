package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mbiandou/parkflow/internal/repository"
)

// IsRetryable reports whether the whole transaction can be replayed safely
// (serialization failure or deadlock; nothing partial was committed).
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	return false
}

// translateDBErr maps driver errors onto repository sentinels. The partial
// unique index on entries(vehicle_id) WHERE status='IN_PROGRESS' surfaces
// concurrent duplicate entries as a unique violation here.
func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		switch pge.Code {
		// unique_violation
		case "23505":
			if pge.ConstraintName == "entries_one_active_per_vehicle" {
				return repository.ErrDuplicateActiveEntry
			}
			return repository.ErrConflict
		// check_violation: parkings_available_within_capacity
		case "23514":
			return repository.ErrCapacityDrift
		}
	}

	return err
}
