package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/repository"
)

type TariffRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *TariffRepo) With(db DB) *TariffRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *TariffRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const tariffColumns = `id, parking_id, vehicle_type, price_per_hour`

// Resolve returns the tariff configured for one vehicle type at one parking.
// There is no default price: a missing tariff is an error the caller must
// surface, never a rate to guess.
//
// Returns:
//   - error: repository.ErrNotFound if no tariff is configured for the pair.
func (r *TariffRepo) Resolve(
	ctx context.Context,
	parkingID int64,
	vehicleType domain.VehicleType,
) (*domain.Tariff, error) {
	const op = "postgres.TariffRepo.Resolve"

	db := r.handle()

	var t domain.Tariff
	err := db.QueryRow(ctx,
		`SELECT `+tariffColumns+`
		 FROM tariffs
		 WHERE parking_id = $1 AND vehicle_type = $2`,
		parkingID, vehicleType,
	).Scan(&t.ID, &t.ParkingID, &t.VehicleType, &t.PricePerHour)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &t, nil
}

func (r *TariffRepo) ListByParking(ctx context.Context, parkingID int64) ([]domain.Tariff, error) {
	const op = "postgres.TariffRepo.ListByParking"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+tariffColumns+`
		 FROM tariffs
		 WHERE parking_id = $1
		 ORDER BY vehicle_type`,
		parkingID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Tariff
	for rows.Next() {
		var t domain.Tariff
		if err := rows.Scan(&t.ID, &t.ParkingID, &t.VehicleType, &t.PricePerHour); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Upsert sets the hourly price for a (parking, vehicle type) pair, relying on
// the unique constraint to keep one tariff per pair.
//
// Returns:
//   - error: repository.ErrNotFound if the parking does not exist.
func (r *TariffRepo) Upsert(
	ctx context.Context,
	parkingID int64,
	vehicleType domain.VehicleType,
	pricePerHour int64,
) (*domain.Tariff, error) {
	const op = "postgres.TariffRepo.Upsert"

	db := r.handle()

	var t domain.Tariff
	err := db.QueryRow(ctx,
		`INSERT INTO tariffs(parking_id, vehicle_type, price_per_hour)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (parking_id, vehicle_type)
		 DO UPDATE SET price_per_hour = EXCLUDED.price_per_hour
		 RETURNING `+tariffColumns,
		parkingID, vehicleType, pricePerHour,
	).Scan(&t.ID, &t.ParkingID, &t.VehicleType, &t.PricePerHour)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &t, nil
}

func (r *TariffRepo) Delete(ctx context.Context, id int64) error {
	const op = "postgres.TariffRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM tariffs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
