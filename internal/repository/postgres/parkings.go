package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/repository"
)

type ParkingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *ParkingRepo) With(db DB) *ParkingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *ParkingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const parkingColumns = `id, name, location, description, total_capacity, available_spaces, created_at`

func scanParking(row interface{ Scan(dest ...any) error }) (*domain.Parking, error) {
	var p domain.Parking
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Location,
		&p.Description,
		&p.TotalCapacity,
		&p.AvailableSpaces,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Get retrieves a parking by its ID.
//
// Returns:
//   - *domain.Parking: the parking when found.
//   - error: repository.ErrNotFound if the parking is not found.
func (r *ParkingRepo) Get(ctx context.Context, id int64) (*domain.Parking, error) {
	const op = "postgres.ParkingRepo.Get"

	db := r.handle()

	p, err := scanParking(db.QueryRow(ctx,
		`SELECT `+parkingColumns+` FROM parkings WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return p, nil
}

func (r *ParkingRepo) List(ctx context.Context) ([]domain.Parking, error) {
	const op = "postgres.ParkingRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+parkingColumns+` FROM parkings ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Parking
	for rows.Next() {
		p, err := scanParking(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Create inserts a parking with a full ledger (available = total).
func (r *ParkingRepo) Create(
	ctx context.Context,
	name, location, description string,
	totalCapacity int,
) (*domain.Parking, error) {
	const op = "postgres.ParkingRepo.Create"

	db := r.handle()

	p, err := scanParking(db.QueryRow(ctx,
		`INSERT INTO parkings(name, location, description, total_capacity, available_spaces)
		 VALUES ($1, $2, $3, $4, $4)
		 RETURNING `+parkingColumns,
		name, location, description, totalCapacity,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return p, nil
}

// UpdateInfo changes descriptive fields only; the ledger is untouched.
func (r *ParkingRepo) UpdateInfo(
	ctx context.Context,
	id int64,
	name, location, description string,
) (*domain.Parking, error) {
	const op = "postgres.ParkingRepo.UpdateInfo"

	db := r.handle()

	p, err := scanParking(db.QueryRow(ctx,
		`UPDATE parkings
		 SET name = $2, location = $3, description = $4
		 WHERE id = $1
		 RETURNING `+parkingColumns,
		id, name, location, description,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return p, nil
}

// Resize applies an administrative capacity edit. The new available count is
// recomputed from the current occupancy in one statement, and the edit is
// refused when the new total would not fit the vehicles already inside.
//
// Returns:
//   - error: repository.ErrCapacityTooSmall if occupied > newTotal.
//   - error: repository.ErrNotFound if the parking is not found.
func (r *ParkingRepo) Resize(ctx context.Context, id int64, newTotal int) (*domain.Parking, error) {
	const op = "postgres.ParkingRepo.Resize"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE parkings
		 SET available_spaces = $2 - (total_capacity - available_spaces),
		     total_capacity = $2
		 WHERE id = $1
		   AND total_capacity - available_spaces <= $2`,
		id, newTotal,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		// Distinguish a missing parking from a too-small capacity.
		var occupied int
		err := db.QueryRow(ctx,
			`SELECT total_capacity - available_spaces FROM parkings WHERE id = $1`,
			id,
		).Scan(&occupied)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		return nil, fmt.Errorf("%s:%w", op, repository.ErrCapacityTooSmall)
	}

	return r.Get(ctx, id)
}

// ReserveSpace atomically takes one space. The decrement is conditional on
// availability so two near-full entries cannot both succeed.
//
// Returns:
//   - int: the remaining available spaces after the decrement.
//   - error: repository.ErrParkingFull when no space is left.
//   - error: repository.ErrNotFound if the parking is not found.
func (r *ParkingRepo) ReserveSpace(ctx context.Context, id int64) (int, error) {
	const op = "postgres.ParkingRepo.ReserveSpace"

	db := r.handle()

	var remaining int
	err := db.QueryRow(ctx,
		`UPDATE parkings
		 SET available_spaces = available_spaces - 1
		 WHERE id = $1 AND available_spaces > 0
		 RETURNING available_spaces`,
		id,
	).Scan(&remaining)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row exists but the WHERE clause filtered it out, or it is gone.
			var exists bool
			if qErr := db.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM parkings WHERE id = $1)`, id,
			).Scan(&exists); qErr == nil && exists {
				return 0, fmt.Errorf("%s:%w", op, repository.ErrParkingFull)
			}
			return 0, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return remaining, nil
}

// ReleaseSpace atomically gives one space back on exit or cancellation. The
// increment is clamped to total_capacity; hitting the clamp means the ledger
// drifted and is reported, not papered over.
//
// Returns:
//   - int: the available spaces after the increment.
//   - error: repository.ErrCapacityDrift when the counter is already full.
//   - error: repository.ErrNotFound if the parking is not found.
func (r *ParkingRepo) ReleaseSpace(ctx context.Context, id int64) (int, error) {
	const op = "postgres.ParkingRepo.ReleaseSpace"

	db := r.handle()

	var available int
	err := db.QueryRow(ctx,
		`UPDATE parkings
		 SET available_spaces = available_spaces + 1
		 WHERE id = $1 AND available_spaces < total_capacity
		 RETURNING available_spaces`,
		id,
	).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			if qErr := db.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM parkings WHERE id = $1)`, id,
			).Scan(&exists); qErr == nil && exists {
				return 0, fmt.Errorf("%s:%w", op, repository.ErrCapacityDrift)
			}
			return 0, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
		}
		return 0, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return available, nil
}

// Delete removes a parking with no IN_PROGRESS entries.
//
// Returns:
//   - error: repository.ErrConflict if entries are still active.
//   - error: repository.ErrNotFound if the parking is not found.
func (r *ParkingRepo) Delete(ctx context.Context, id int64) error {
	const op = "postgres.ParkingRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`DELETE FROM parkings
		 WHERE id = $1
		   AND NOT EXISTS (
		     SELECT 1 FROM entries WHERE parking_id = $1 AND status = 'IN_PROGRESS'
		   )`,
		id,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if qErr := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM parkings WHERE id = $1)`, id,
		).Scan(&exists); qErr == nil && exists {
			return fmt.Errorf("%s:%w", op, repository.ErrConflict)
		}
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
