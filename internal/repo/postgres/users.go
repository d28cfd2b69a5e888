package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/accounthub/internal/domain/user"
	"github.com/geocoder89/accounthub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active,
	refresh_token, refresh_token_expiry,
	phone_number, profile_picture, department, student_id,
	created_at, updated_at, last_login`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return false
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_email", func() error {
		row := r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE email = $1`,
			email,
		)
		u, err = scanUser(row)
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	var err error

	err = r.observe("users.get_by_id", func() error {
		row := r.pool.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1`,
			id,
		)
		u, err = scanUser(row)
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}

		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) error {
	err := r.observe("users.create", func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO users (`+userColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
			u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.IsActive,
			u.RefreshToken, u.RefreshTokenExpiry,
			u.PhoneNumber, u.ProfilePicture, u.Department, u.StudentID,
			u.CreatedAt, u.UpdatedAt, u.LastLogin,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return err
	}

	return nil
}

// Update applies mutate to one record inside a transaction that holds the
// row lock, so concurrent read-modify-writes on the same record serialize
// instead of clobbering each other.
func (r *UsersRepo) Update(ctx context.Context, id string, mutate func(*user.User) error) (user.User, error) {
	var out user.User

	err := r.observe("users.update", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})

		if err != nil {
			return err
		}

		defer func() { _ = tx.Rollback(ctx) }()

		row := tx.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`,
			id,
		)

		u, err := scanUser(row)

		if err != nil {
			return err
		}

		if err := mutate(&u); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE users
			SET first_name = $2,
			    last_name = $3,
			    role = $4,
			    is_active = $5,
			    refresh_token = $6,
			    refresh_token_expiry = $7,
			    phone_number = $8,
			    profile_picture = $9,
			    department = $10,
			    student_id = $11,
			    updated_at = $12,
			    last_login = $13
			WHERE id = $1
		`,
			u.ID, u.FirstName, u.LastName, u.Role, u.IsActive,
			u.RefreshToken, u.RefreshTokenExpiry,
			u.PhoneNumber, u.ProfilePicture, u.Department, u.StudentID,
			u.UpdatedAt, u.LastLogin,
		)

		if err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		out = u
		return nil
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return out, nil
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.IsActive,
		&u.RefreshToken,
		&u.RefreshTokenExpiry,
		&u.PhoneNumber,
		&u.ProfilePicture,
		&u.Department,
		&u.StudentID,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.LastLogin,
	)

	if err != nil {
		return user.User{}, err
	}

	return u, nil
}
