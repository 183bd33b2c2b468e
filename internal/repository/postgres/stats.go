package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mbiandou/parkflow/internal/domain"
)

type StatsRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *StatsRepo) With(db DB) *StatsRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *StatsRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Occupancy reads the counter and the derived IN_PROGRESS count side by side.
// The two must agree (available + derived == total); callers report any gap as
// drift instead of correcting the ledger.
//
// Returns:
//   - error: repository.ErrNotFound if the parking is not found.
func (r *StatsRepo) Occupancy(ctx context.Context, parkingID int64) (*domain.Occupancy, error) {
	const op = "postgres.StatsRepo.Occupancy"

	db := r.handle()

	var o domain.Occupancy
	err := db.QueryRow(ctx,
		`SELECT p.id, p.total_capacity, p.available_spaces,
		        p.total_capacity - p.available_spaces,
		        COALESCE(COUNT(e.id), 0)
		 FROM parkings p
		 LEFT JOIN entries e ON e.parking_id = p.id AND e.status = 'IN_PROGRESS'
		 WHERE p.id = $1
		 GROUP BY p.id`,
		parkingID,
	).Scan(&o.ParkingID, &o.TotalCapacity, &o.AvailableSpaces, &o.Occupied, &o.Derived)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &o, nil
}

// RevenueByDay aggregates completed-entry amounts per day for one parking.
func (r *StatsRepo) RevenueByDay(
	ctx context.Context,
	parkingID int64,
	from, to time.Time,
) ([]domain.RevenuePoint, error) {
	const op = "postgres.StatsRepo.RevenueByDay"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT date_trunc('day', exit_time) AS day,
		        COUNT(*),
		        COALESCE(SUM(amount), 0)
		 FROM entries
		 WHERE parking_id = $1
		   AND status = 'COMPLETED'
		   AND exit_time >= $2 AND exit_time < $3
		 GROUP BY day
		 ORDER BY day`,
		parkingID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.RevenuePoint
	for rows.Next() {
		var p domain.RevenuePoint
		if err := rows.Scan(&p.Day, &p.Entries, &p.Amount); err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}
