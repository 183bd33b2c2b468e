package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/repository"
	"gopkg.in/guregu/null.v4"
)

type EntryRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *EntryRepo) With(db DB) *EntryRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *EntryRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const entryColumns = `id, parking_id, vehicle_id, card_id, entry_time, exit_time,
	duration_minutes, amount, status, payment_method, created_at`

func scanEntry(row interface{ Scan(dest ...any) error }) (*domain.Entry, error) {
	var e domain.Entry
	err := row.Scan(
		&e.ID,
		&e.ParkingID,
		&e.VehicleID,
		&e.CardID,
		&e.EntryTime,
		&e.ExitTime,
		&e.Duration,
		&e.Amount,
		&e.Status,
		&e.PaymentMethod,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Insert opens an IN_PROGRESS entry. The partial unique index
// entries_one_active_per_vehicle guarantees at most one active entry per
// vehicle even when two requests pass validation concurrently.
//
// Returns:
//   - error: repository.ErrDuplicateActiveEntry on a concurrent duplicate.
func (r *EntryRepo) Insert(
	ctx context.Context,
	parkingID, vehicleID int64,
	cardID null.Int,
	entryTime time.Time,
) (*domain.Entry, error) {
	const op = "postgres.EntryRepo.Insert"

	db := r.handle()

	e, err := scanEntry(db.QueryRow(ctx,
		`INSERT INTO entries(id, parking_id, vehicle_id, card_id, entry_time, status)
		 VALUES ($1, $2, $3, $4, $5, 'IN_PROGRESS')
		 RETURNING `+entryColumns,
		uuid.New(), parkingID, vehicleID, cardID, entryTime,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return e, nil
}

// Get retrieves an entry by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the entry is not found.
func (r *EntryRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Entry, error) {
	const op = "postgres.EntryRepo.Get"

	db := r.handle()

	e, err := scanEntry(db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return e, nil
}

// FindActiveByVehicle returns the single IN_PROGRESS entry for a vehicle,
// across all parkings.
//
// Returns:
//   - error: repository.ErrNotFound when the vehicle is not parked anywhere.
func (r *EntryRepo) FindActiveByVehicle(ctx context.Context, vehicleID int64) (*domain.Entry, error) {
	const op = "postgres.EntryRepo.FindActiveByVehicle"

	db := r.handle()

	e, err := scanEntry(db.QueryRow(ctx,
		`SELECT `+entryColumns+`
		 FROM entries
		 WHERE vehicle_id = $1 AND status = 'IN_PROGRESS'`,
		vehicleID,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return e, nil
}

// FindActiveAtParking locates a vehicle's IN_PROGRESS entry at one parking,
// the lookup the hardware exit lane uses.
func (r *EntryRepo) FindActiveAtParking(
	ctx context.Context,
	vehicleID, parkingID int64,
) (*domain.Entry, error) {
	const op = "postgres.EntryRepo.FindActiveAtParking"

	db := r.handle()

	e, err := scanEntry(db.QueryRow(ctx,
		`SELECT `+entryColumns+`
		 FROM entries
		 WHERE vehicle_id = $1 AND parking_id = $2 AND status = 'IN_PROGRESS'`,
		vehicleID, parkingID,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return e, nil
}

// Complete finalizes an entry. The status predicate makes the transition
// IN_PROGRESS -> COMPLETED the only one this statement can perform; a zero
// row count means the entry was already terminal (or absent).
//
// Returns:
//   - error: repository.ErrEntryNotActive if the entry is not IN_PROGRESS.
//   - error: repository.ErrNotFound if the entry does not exist.
func (r *EntryRepo) Complete(
	ctx context.Context,
	id uuid.UUID,
	exitTime time.Time,
	durationMinutes, amount int64,
	paymentMethod domain.PaymentMethod,
) (*domain.Entry, error) {
	const op = "postgres.EntryRepo.Complete"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE entries
		 SET exit_time = $2, duration_minutes = $3, amount = $4,
		     payment_method = $5, status = 'COMPLETED'
		 WHERE id = $1 AND status = 'IN_PROGRESS'`,
		id, exitTime, durationMinutes, amount, paymentMethod,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if qErr := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM entries WHERE id = $1)`, id,
		).Scan(&exists); qErr == nil && exists {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrEntryNotActive)
		}
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return r.Get(ctx, id)
}

// Cancel voids an erroneous entry. No duration or amount is recorded.
//
// Returns:
//   - error: repository.ErrEntryNotActive if the entry is not IN_PROGRESS.
//   - error: repository.ErrNotFound if the entry does not exist.
func (r *EntryRepo) Cancel(ctx context.Context, id uuid.UUID) (*domain.Entry, error) {
	const op = "postgres.EntryRepo.Cancel"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE entries
		 SET status = 'CANCELLED'
		 WHERE id = $1 AND status = 'IN_PROGRESS'`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if qErr := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM entries WHERE id = $1)`, id,
		).Scan(&exists); qErr == nil && exists {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrEntryNotActive)
		}
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return r.Get(ctx, id)
}

const entryDetailColumns = `
	e.id, e.parking_id, e.vehicle_id, e.card_id, e.entry_time, e.exit_time,
	e.duration_minutes, e.amount, e.status, e.payment_method, e.created_at,
	p.id, p.name, p.location, p.description, p.total_capacity, p.available_spaces, p.created_at,
	v.id, v.plate_number, v.vehicle_type, v.brand, v.model, v.color, v.created_at,
	c.id, c.card_number, c.vehicle_id, c.is_active, c.created_at`

func scanEntryDetails(row interface{ Scan(dest ...any) error }) (*domain.EntryDetails, error) {
	var (
		d    domain.EntryDetails
		p    domain.Parking
		v    domain.Vehicle
		cID  null.Int
		cNum null.String
		cVeh null.Int
		cAct null.Bool
		cAt  null.Time
	)

	err := row.Scan(
		&d.ID, &d.ParkingID, &d.VehicleID, &d.CardID, &d.EntryTime, &d.ExitTime,
		&d.Duration, &d.Amount, &d.Status, &d.PaymentMethod, &d.CreatedAt,
		&p.ID, &p.Name, &p.Location, &p.Description, &p.TotalCapacity, &p.AvailableSpaces, &p.CreatedAt,
		&v.ID, &v.PlateNumber, &v.VehicleType, &v.Brand, &v.Model, &v.Color, &v.CreatedAt,
		&cID, &cNum, &cVeh, &cAct, &cAt,
	)
	if err != nil {
		return nil, err
	}

	d.Parking = &p
	d.Vehicle = &v
	if cID.Valid {
		d.Card = &domain.Card{
			ID:         cID.Int64,
			CardNumber: cNum.String,
			VehicleID:  cVeh.Int64,
			IsActive:   cAct.Bool,
			CreatedAt:  cAt.Time,
		}
	}

	return &d, nil
}

// GetDetails retrieves an entry with its parking, vehicle and card joined.
func (r *EntryRepo) GetDetails(ctx context.Context, id uuid.UUID) (*domain.EntryDetails, error) {
	const op = "postgres.EntryRepo.GetDetails"

	db := r.handle()

	d, err := scanEntryDetails(db.QueryRow(ctx,
		`SELECT `+entryDetailColumns+`
		 FROM entries e
		 JOIN parkings p ON p.id = e.parking_id
		 JOIN vehicles v ON v.id = e.vehicle_id
		 LEFT JOIN cards c ON c.id = e.card_id
		 WHERE e.id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return d, nil
}

// List pages entries, newest first, optionally filtered by parking and status.
func (r *EntryRepo) List(
	ctx context.Context,
	parkingID int64,
	status domain.EntryStatus,
	limit, offset int,
) ([]domain.EntryDetails, error) {
	const op = "postgres.EntryRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+entryDetailColumns+`
		 FROM entries e
		 JOIN parkings p ON p.id = e.parking_id
		 JOIN vehicles v ON v.id = e.vehicle_id
		 LEFT JOIN cards c ON c.id = e.card_id
		 WHERE ($1 = 0 OR e.parking_id = $1)
		   AND ($2 = '' OR e.status = $2)
		 ORDER BY e.entry_time DESC
		 LIMIT $3 OFFSET $4`,
		parkingID, string(status), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.EntryDetails
	for rows.Next() {
		d, err := scanEntryDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
