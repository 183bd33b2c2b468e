package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mbiandou/parkflow/internal/domain"
	"github.com/mbiandou/parkflow/internal/repository"
)

type UserRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *UserRepo) With(db DB) *UserRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *UserRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

const userColumns = `id, username, password_hash, role, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByUsername retrieves a user by username.
//
// Returns:
//   - error: repository.ErrNotFound if the user is not found.
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	const op = "postgres.UserRepo.FindByUsername"

	db := r.handle()

	u, err := scanUser(db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`,
		username,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return u, nil
}

// Create inserts a user.
//
// Returns:
//   - error: repository.ErrConflict if the username is taken.
func (r *UserRepo) Create(ctx context.Context, username, passwordHash string, role domain.Role) (*domain.User, error) {
	const op = "postgres.UserRepo.Create"

	db := r.handle()

	u, err := scanUser(db.QueryRow(ctx,
		`INSERT INTO users(username, password_hash, role)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		username, passwordHash, role,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return u, nil
}

func (r *UserRepo) List(ctx context.Context) ([]domain.User, error) {
	const op = "postgres.UserRepo.List"

	db := r.handle()

	rows, err := db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	const op = "postgres.UserRepo.Delete"

	db := r.handle()

	tag, err := db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}
