package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// Repo implements Querier on Postgres.
type Repo struct {
	Pool *pgxpool.Pool
}

func (r *Repo) CreateUser(ctx context.Context, username, passwordHash, role string) (StoredUser, error) {
	var u StoredUser
	err := r.Pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, role)
		 VALUES ($1, $2, $3)
		 RETURNING id, username, password_hash, role, created_at`,
		username, passwordHash, role,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return StoredUser{}, ErrDuplicateUsername
		}
		return StoredUser{}, err
	}
	return u, nil
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (StoredUser, error) {
	return r.getUser(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = $1`, username)
}

func (r *Repo) GetUserByID(ctx context.Context, id string) (StoredUser, error) {
	return r.getUser(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE id = $1`, id)
}

func (r *Repo) getUser(ctx context.Context, query, arg string) (StoredUser, error) {
	var u StoredUser
	err := r.Pool.QueryRow(ctx, query, arg).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StoredUser{}, ErrUserNotFound
		}
		return StoredUser{}, err
	}
	return u, nil
}
