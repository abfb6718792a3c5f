package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"auth-plane/internal/user/domain"
)

// uniqueViolation is the Postgres error code for unique constraint failures.
const uniqueViolation = "23505"

// PostgresRepository persists users in the users table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a user repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const userColumns = `id, email, first_name, last_name, patronymic, password_hash, active, created_at, updated_at, deleted_at`

// GetByID returns the active user for id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND active = TRUE
	`, id)
	return scanUserNilOnMissing(row)
}

// GetByEmail returns the active user for the normalized email, or nil if not found.
func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1 AND active = TRUE
	`, email)
	return scanUserNilOnMissing(row)
}

// Create persists the user. Returns ErrDuplicateEmail when the email unique
// constraint is violated.
func (r *PostgresRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, first_name, last_name, patronymic, password_hash, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9)
	`, u.ID, u.Email, u.FirstName, u.LastName, u.Patronymic, u.PasswordHash, u.Active, u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

// Update writes mutable fields and returns the stored user. Empty fields on
// u are left unchanged.
func (r *PostgresRepository) Update(ctx context.Context, u *domain.User) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET
			email         = COALESCE(NULLIF($2, ''), email),
			first_name    = COALESCE(NULLIF($3, ''), first_name),
			last_name     = COALESCE(NULLIF($4, ''), last_name),
			patronymic    = COALESCE(NULLIF($5, ''), patronymic),
			password_hash = COALESCE(NULLIF($6, ''), password_hash),
			updated_at    = $7
		WHERE id = $1 AND active = TRUE
		RETURNING `+userColumns+`
	`, u.ID, u.Email, u.FirstName, u.LastName, u.Patronymic, u.PasswordHash, time.Now().UTC())
	out, err := scanUserNilOnMissing(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return out, nil
}

// SoftDelete marks the user inactive and stamps deleted_at. The row is kept.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		UPDATE users SET active = FALSE, deleted_at = $2, updated_at = $2
		WHERE id = $1 AND active = TRUE
	`, id, now)
	return err
}

// Reactivate revives a soft-deleted user with the given email, clearing
// deleted_at. Returns nil when no inactive user matches.
func (r *PostgresRepository) Reactivate(ctx context.Context, email string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users SET active = TRUE, deleted_at = NULL, updated_at = $2
		WHERE email = $1 AND active = FALSE
		RETURNING `+userColumns+`
	`, email, time.Now().UTC())
	return scanUserNilOnMissing(row)
}

func scanUserNilOnMissing(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var patronymic *string
	if err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &patronymic,
		&u.PasswordHash, &u.Active, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if patronymic != nil {
		u.Patronymic = *patronymic
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
