package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// UpsertBySubject registers a gateway subject on first sight and touches
// last_active_at on every later login.
func (r *UserRepo) UpsertBySubject(ctx context.Context, subject string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (subject)
		VALUES ($1)
		ON CONFLICT (subject) DO UPDATE SET
			last_active_at = now()
		RETURNING id, subject, display_name, created_at, last_active_at
	`, subject).Scan(
		&u.ID, &u.Subject, &u.DisplayName, &u.CreatedAt, &u.LastActiveAt,
	)
	return &u, err
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, subject, display_name, created_at, last_active_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Subject, &u.DisplayName, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) SetDisplayName(ctx context.Context, id uuid.UUID, displayName string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET display_name = $1 WHERE id = $2`, displayName, id)
	return err
}

func (r *UserRepo) UpdateLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}
