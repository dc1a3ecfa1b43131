package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

var (
	// ErrUserExists indicates that the username is already registered.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials indicates an unknown username or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository stores login credentials.
type Repository interface {
	Create(ctx context.Context, username, email, password string) error
	CreateSuperuser(ctx context.Context, username, email, password string) error
	Authenticate(ctx context.Context, username, password string) (Identity, error)
	Exists(ctx context.Context, username string) (bool, error)
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL credential repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Create(ctx context.Context, username, email, password string) error {
	return r.insert(ctx, username, email, password, false)
}

func (r *PgRepository) CreateSuperuser(ctx context.Context, username, email, password string) error {
	return r.insert(ctx, username, email, password, true)
}

func (r *PgRepository) insert(ctx context.Context, username, email, password string, superuser bool) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO users (username, email, password_hash, is_superuser)
		 VALUES ($1, $2, $3, $4)`,
		username, email, hash, superuser)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrUserExists
		}
		return fmt.Errorf("creating user %s: %w", username, err)
	}
	return nil
}

func (r *PgRepository) Authenticate(ctx context.Context, username, password string) (Identity, error) {
	var (
		hash      string
		superuser bool
	)
	err := r.pool.QueryRow(ctx,
		`SELECT password_hash, is_superuser FROM users WHERE username = $1`,
		username).Scan(&hash, &superuser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, fmt.Errorf("loading user %s: %w", username, err)
	}
	if err := CheckPassword(hash, password); err != nil {
		return Identity{}, err
	}
	return Identity{Username: username, Superuser: superuser}, nil
}

func (r *PgRepository) Exists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking user %s: %w", username, err)
	}
	return exists, nil
}
