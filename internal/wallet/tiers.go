package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
)

var (
	// ErrNotFound — тир уверенно ответил "нет такого кошелька".
	// Любая другая ошибка тира означает, что он недоступен.
	ErrNotFound = errors.New("wallet not found in tier")

	// ErrExists is returned by PutNew when the owner already has a row.
	ErrExists = errors.New("wallet already exists")

	// ErrWalletNotFound means every tier confirmed or defaulted to a miss.
	// It is an outcome, not a transport failure.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrResolutionFailed means creation was attempted and no tier could
	// produce a usable record.
	ErrResolutionFailed = errors.New("wallet resolution failed")
)

// LedgerTier is the authoritative registry. Create must be idempotent on
// the registry side: registering an owner twice returns ErrExists.
type LedgerTier interface {
	Exists(ctx context.Context, ownerID string) (bool, error)
	Info(ctx context.Context, ownerID string) (models.WalletRecord, error)
	Balance(ctx context.Context, ownerID string) (string, error)
	Create(ctx context.Context, rec models.WalletRecord) error
}

// SecondaryTier is the durable replica. PutNew is the uniqueness arbiter
// for concurrent first-time resolutions (UNIQUE on owner identity).
type SecondaryTier interface {
	Get(ctx context.Context, ownerID string) (models.WalletRecord, error)
	Put(ctx context.Context, rec models.WalletRecord) error
	PutNew(ctx context.Context, rec models.WalletRecord) error
	UpdateBalance(ctx context.Context, ownerID, balance string) error
	RecentlyActive(ctx context.Context, window time.Duration, limit int) ([]models.WalletRecord, error)
}

// CacheTier is the hot local tier. It is the only tier that ever holds
// private key material.
type CacheTier interface {
	Get(ctx context.Context, ownerID string) (models.WalletRecord, error)
	Put(ctx context.Context, rec models.WalletRecord) error
	Delete(ctx context.Context, ownerID string) error
}

// BalanceReader reads the on-chain balance for an address, in wei.
type BalanceReader interface {
	BalanceOf(ctx context.Context, address string) (string, error)
}
