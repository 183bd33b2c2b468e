package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/repository"
)

type CardRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *CardRepo) With(db DB) *CardRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *CardRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const cardColumns = `id, card_number, vehicle_id, is_active, created_at`

func scanCard(row interface{ Scan(dest ...any) error }) (*domain.Card, error) {
	var c domain.Card
	err := row.Scan(&c.ID, &c.CardNumber, &c.VehicleID, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Get retrieves a card by its ID.
//
// Returns:
//   - error: repository.ErrNotFound if the card is not found.
func (r *CardRepo) Get(ctx context.Context, id int64) (*domain.Card, error) {
	const op = "postgres.CardRepo.Get"

	db := r.handle()

	c, err := scanCard(db.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return c, nil
}

// GetByNumber retrieves a card by the number the RFID reader scanned.
func (r *CardRepo) GetByNumber(ctx context.Context, cardNumber string) (*domain.Card, error) {
	const op = "postgres.CardRepo.GetByNumber"

	db := r.handle()

	c, err := scanCard(db.QueryRow(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE card_number = $1`,
		cardNumber,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return c, nil
}

func (r *CardRepo) ListByVehicle(ctx context.Context, vehicleID int64) ([]domain.Card, error) {
	const op = "postgres.CardRepo.ListByVehicle"

	db := r.handle()

	rows, err := db.Query(ctx,
		`SELECT `+cardColumns+` FROM cards WHERE vehicle_id = $1 ORDER BY card_number`,
		vehicleID,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Create registers a card for a vehicle. New cards start active.
//
// Returns:
//   - error: repository.ErrConflict if the card number already exists.
//   - error: repository.ErrNotFound if the vehicle does not exist.
func (r *CardRepo) Create(ctx context.Context, cardNumber string, vehicleID int64) (*domain.Card, error) {
	const op = "postgres.CardRepo.Create"

	db := r.handle()

	c, err := scanCard(db.QueryRow(ctx,
		`INSERT INTO cards(card_number, vehicle_id, is_active)
		 VALUES ($1, $2, TRUE)
		 RETURNING `+cardColumns,
		cardNumber, vehicleID,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return c, nil
}

// SetActive flips card activation. A deactivated card cannot authorize the
// hardware lane or a staff entry that references it.
func (r *CardRepo) SetActive(ctx context.Context, id int64, active bool) (*domain.Card, error) {
	const op = "postgres.CardRepo.SetActive"

	db := r.handle()

	c, err := scanCard(db.QueryRow(ctx,
		`UPDATE cards SET is_active = $2 WHERE id = $1 RETURNING `+cardColumns,
		id, active,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return c, nil
}

func (r *CardRepo) Delete(ctx context.Context, id int64) error {
	const op = "postgres.CardRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
