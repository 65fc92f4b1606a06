package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/desmond009/TollCrypt-sub002/internal/wallet"
)

// WalletRepo is the secondary wallet tier: a durable replica of ledger
// facts plus locally created records. Приватные ключи сюда не попадают.
type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func (r *WalletRepo) Get(ctx context.Context, ownerID string) (models.WalletRecord, error) {
	var rec models.WalletRecord
	err := r.pool.QueryRow(ctx, `
		SELECT owner_id, address, public_key, balance, created_at, last_accessed
		FROM wallets WHERE owner_id = $1
	`, ownerID).Scan(
		&rec.OwnerID, &rec.Address, &rec.PublicKey, &rec.Balance, &rec.CreatedAt, &rec.LastAccessed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.WalletRecord{}, wallet.ErrNotFound
	}
	if err != nil {
		return models.WalletRecord{}, err
	}
	return rec, nil
}

// GetByAddress serves the chain indexer, which only sees addresses.
func (r *WalletRepo) GetByAddress(ctx context.Context, address string) (models.WalletRecord, error) {
	var rec models.WalletRecord
	err := r.pool.QueryRow(ctx, `
		SELECT owner_id, address, public_key, balance, created_at, last_accessed
		FROM wallets WHERE lower(address) = lower($1)
	`, address).Scan(
		&rec.OwnerID, &rec.Address, &rec.PublicKey, &rec.Balance, &rec.CreatedAt, &rec.LastAccessed,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.WalletRecord{}, wallet.ErrNotFound
	}
	if err != nil {
		return models.WalletRecord{}, err
	}
	return rec, nil
}

func (r *WalletRepo) Put(ctx context.Context, rec models.WalletRecord) error {
	stampTimes(&rec)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO wallets (owner_id, address, public_key, balance, created_at, last_accessed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id) DO UPDATE SET
			address = EXCLUDED.address,
			public_key = EXCLUDED.public_key,
			balance = EXCLUDED.balance,
			last_accessed = EXCLUDED.last_accessed
	`, rec.OwnerID, rec.Address, rec.PublicKey, rec.Balance, rec.CreatedAt, rec.LastAccessed)
	return err
}

// PutNew inserts only when the owner has no row yet. Уникальный индекс по
// owner_id — арбитр гонки одновременного создания.
func (r *WalletRepo) PutNew(ctx context.Context, rec models.WalletRecord) error {
	stampTimes(&rec)
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO wallets (owner_id, address, public_key, balance, created_at, last_accessed)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (owner_id) DO NOTHING
	`, rec.OwnerID, rec.Address, rec.PublicKey, rec.Balance, rec.CreatedAt, rec.LastAccessed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return wallet.ErrExists
	}
	return nil
}

func (r *WalletRepo) UpdateBalance(ctx context.Context, ownerID, balance string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE wallets SET balance = $2, last_accessed = now() WHERE owner_id = $1
	`, ownerID, balance)
	return err
}

// RecentlyActive returns wallets touched within the window, freshest
// first. Питает периодический обход балансов в worker.
func (r *WalletRepo) RecentlyActive(ctx context.Context, window time.Duration, limit int) ([]models.WalletRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT owner_id, address, public_key, balance, created_at, last_accessed
		FROM wallets
		WHERE last_accessed > now() - $1::interval
		ORDER BY last_accessed DESC
		LIMIT $2
	`, window.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.WalletRecord
	for rows.Next() {
		var rec models.WalletRecord
		if err := rows.Scan(
			&rec.OwnerID, &rec.Address, &rec.PublicKey, &rec.Balance, &rec.CreatedAt, &rec.LastAccessed,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func stampTimes(rec *models.WalletRecord) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.LastAccessed.IsZero() {
		rec.LastAccessed = time.Now()
	}
}
