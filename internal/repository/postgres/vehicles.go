package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/repository"
)

type VehicleRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *VehicleRepo) With(db DB) *VehicleRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *VehicleRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const vehicleColumns = `id, plate_number, vehicle_type, brand, model, color, created_at`

func scanVehicle(row interface{ Scan(dest ...any) error }) (*domain.Vehicle, error) {
	var v domain.Vehicle
	err := row.Scan(
		&v.ID,
		&v.PlateNumber,
		&v.VehicleType,
		&v.Brand,
		&v.Model,
		&v.Color,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Get retrieves a vehicle by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the vehicle is not found.
func (r *VehicleRepo) Get(ctx context.Context, id int64) (*domain.Vehicle, error) {
	const op = "postgres.VehicleRepo.Get"

	db := r.handle()

	v, err := scanVehicle(db.QueryRow(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return v, nil
}

// GetByPlate retrieves a vehicle by its globally unique plate number.
func (r *VehicleRepo) GetByPlate(ctx context.Context, plate string) (*domain.Vehicle, error) {
	const op = "postgres.VehicleRepo.GetByPlate"

	db := r.handle()

	v, err := scanVehicle(db.QueryRow(ctx,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE plate_number = $1`,
		plate,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return v, nil
}

func (r *VehicleRepo) List(ctx context.Context, limit, offset int) ([]domain.Vehicle, error) {
	const op = "postgres.VehicleRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+vehicleColumns+`
		 FROM vehicles
		 ORDER BY plate_number
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Create inserts a vehicle.
//
// Returns:
//   - error: repository.ErrConflict if the plate number is already registered.
func (r *VehicleRepo) Create(ctx context.Context, v *domain.Vehicle) (*domain.Vehicle, error) {
	const op = "postgres.VehicleRepo.Create"

	db := r.handle()

	created, err := scanVehicle(db.QueryRow(ctx,
		`INSERT INTO vehicles(plate_number, vehicle_type, brand, model, color)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+vehicleColumns,
		v.PlateNumber, v.VehicleType, v.Brand, v.Model, v.Color,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return created, nil
}

func (r *VehicleRepo) Update(ctx context.Context, v *domain.Vehicle) (*domain.Vehicle, error) {
	const op = "postgres.VehicleRepo.Update"

	db := r.handle()

	updated, err := scanVehicle(db.QueryRow(ctx,
		`UPDATE vehicles
		 SET plate_number = $2, vehicle_type = $3, brand = $4, model = $5, color = $6
		 WHERE id = $1
		 RETURNING `+vehicleColumns,
		v.ID, v.PlateNumber, v.VehicleType, v.Brand, v.Model, v.Color,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return updated, nil
}

// Delete removes a vehicle unless it is currently parked.
//
// Returns:
//   - error: repository.ErrVehicleInUse if the vehicle has an IN_PROGRESS entry.
//   - error: repository.ErrNotFound if the vehicle is not found.
func (r *VehicleRepo) Delete(ctx context.Context, id int64) error {
	const op = "postgres.VehicleRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`DELETE FROM vehicles
		 WHERE id = $1
		   AND NOT EXISTS (
		     SELECT 1 FROM entries WHERE vehicle_id = $1 AND status = 'IN_PROGRESS'
		   )`,
		id,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if qErr := db.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM vehicles WHERE id = $1)`, id,
		).Scan(&exists); qErr == nil && exists {
			return fmt.Errorf("%s:%w", op, repository.ErrVehicleInUse)
		}
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
