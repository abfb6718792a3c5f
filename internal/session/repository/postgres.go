package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"auth-plane/internal/session/domain"
)

// PostgresRepository persists sessions in the sessions table.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository returns a session repository backed by the given pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists the session to the database. The session must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, s *domain.Session) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sessions (id, user_id, device, active, created_at, expire_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, s.ID, s.UserID, string(s.Device), s.Active, s.CreatedAt, s.ExpireAt)
	return err
}

// GetActiveByID returns the active session for id, or nil if not found or
// deactivated. It returns an error only for database failures.
func (r *PostgresRepository) GetActiveByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, device, active, created_at, expire_at
		FROM sessions
		WHERE id = $1 AND active = TRUE
	`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// GetActiveByUserAndDevice returns all active sessions for the given user and
// device class. Expected 0 or 1 under correct operation, but more can exist
// under concurrent logins.
func (r *PostgresRepository) GetActiveByUserAndDevice(ctx context.Context, userID string, device domain.Device) ([]*domain.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, device, active, created_at, expire_at
		FROM sessions
		WHERE user_id = $1 AND device = $2 AND active = TRUE
	`, userID, string(device))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Deactivate transitions the session to inactive and returns the updated row,
// or nil when no active session matched (idempotent no-op).
func (r *PostgresRepository) Deactivate(ctx context.Context, id string) (*domain.Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE sessions SET active = FALSE
		WHERE id = $1 AND active = TRUE
		RETURNING id, user_id, device, active, created_at, expire_at
	`, id)
	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	var device string
	if err := row.Scan(&s.ID, &s.UserID, &device, &s.Active, &s.CreatedAt, &s.ExpireAt); err != nil {
		return nil, err
	}
	s.Device = domain.Device(device)
	return &s, nil
}
