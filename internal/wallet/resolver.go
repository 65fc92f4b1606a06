package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/desmond009/TollCrypt-sub002/internal/obs"
)

// Resolver walks the tiers in strict authority order: ledger, secondary,
// cache. Lower tiers are caches of higher ones and are repaired on every
// hit. Межвызовной блокировки нет: одновременное создание разруливает
// уникальный индекс вторичного тира.
type Resolver struct {
	ledger    LedgerTier
	secondary SecondaryTier
	cache     CacheTier
	cacheTTL  time.Duration
	log       *zap.Logger
}

func NewResolver(ledger LedgerTier, secondary SecondaryTier, cache CacheTier, cacheTTL time.Duration, log *zap.Logger) *Resolver {
	if cacheTTL <= 0 {
		cacheTTL = models.WalletCacheTTL
	}
	return &Resolver{
		ledger:    ledger,
		secondary: secondary,
		cache:     cache,
		cacheTTL:  cacheTTL,
		log:       log,
	}
}

// NormalizeOwner canonicalizes an owner identity. Every tier is keyed by
// the normalized form.
func NormalizeOwner(ownerID string) string {
	return strings.ToLower(strings.TrimSpace(ownerID))
}

// Resolve looks up the owner's wallet without creating one. A full miss
// returns ErrWalletNotFound; unreachable tiers degrade to misses.
func (r *Resolver) Resolve(ctx context.Context, ownerID string) (models.WalletRecord, error) {
	return r.resolve(ctx, ownerID, false)
}

// Ensure resolves the owner's wallet and creates it when every tier
// misses.
func (r *Resolver) Ensure(ctx context.Context, ownerID string) (models.WalletRecord, error) {
	return r.resolve(ctx, ownerID, true)
}

func (r *Resolver) resolve(ctx context.Context, ownerID string, allowCreate bool) (models.WalletRecord, error) {
	owner := NormalizeOwner(ownerID)
	if owner == "" {
		return models.WalletRecord{}, fmt.Errorf("%w: empty owner identity", ErrWalletNotFound)
	}

	var tierErrs []error

	rec, err := retryRecord(ctx, func() (models.WalletRecord, error) {
		return r.ledger.Info(ctx, owner)
	})
	switch {
	case err == nil:
		rec.OwnerID = owner
		rec.Provenance = models.WalletProvenanceLedger
		rec = r.mergeCachedKey(ctx, rec)
		r.writeThrough(ctx, rec, true)
		obs.WalletResolutionsTotal.WithLabelValues(models.WalletProvenanceLedger).Inc()
		return rec, nil
	case errors.Is(err, ErrNotFound):
		// подтверждённое отсутствие, дальше без предупреждения
	default:
		obs.TierFailuresTotal.WithLabelValues("ledger").Inc()
		r.log.Warn("ledger tier unreachable", zap.String("owner", owner), zap.Error(err))
		tierErrs = append(tierErrs, fmt.Errorf("ledger: %w", err))
	}

	rec, err = retryRecord(ctx, func() (models.WalletRecord, error) {
		return r.secondary.Get(ctx, owner)
	})
	switch {
	case err == nil:
		rec.Provenance = models.WalletProvenanceSecondary
		rec = r.mergeCachedKey(ctx, rec)
		r.writeThrough(ctx, rec, false)
		obs.WalletResolutionsTotal.WithLabelValues(models.WalletProvenanceSecondary).Inc()
		return rec, nil
	case errors.Is(err, ErrNotFound):
	default:
		obs.TierFailuresTotal.WithLabelValues("secondary").Inc()
		r.log.Warn("secondary tier unreachable", zap.String("owner", owner), zap.Error(err))
		tierErrs = append(tierErrs, fmt.Errorf("secondary: %w", err))
	}

	rec, err = retryRecord(ctx, func() (models.WalletRecord, error) {
		return r.cache.Get(ctx, owner)
	})
	switch {
	case err == nil:
		if time.Since(rec.LastAccessed) <= r.cacheTTL {
			rec.Provenance = models.WalletProvenanceCache
			rec.LastAccessed = time.Now()
			if putErr := r.cache.Put(ctx, rec); putErr != nil {
				r.log.Warn("cache touch failed", zap.String("owner", owner), zap.Error(putErr))
			}
			obs.WalletResolutionsTotal.WithLabelValues(models.WalletProvenanceCache).Inc()
			return rec, nil
		}
		// протухшая запись равна промаху
		if delErr := r.cache.Delete(ctx, owner); delErr != nil {
			r.log.Warn("stale cache delete failed", zap.String("owner", owner), zap.Error(delErr))
		}
	case errors.Is(err, ErrNotFound):
	default:
		obs.TierFailuresTotal.WithLabelValues("cache").Inc()
		r.log.Warn("cache tier unreachable", zap.String("owner", owner), zap.Error(err))
		tierErrs = append(tierErrs, fmt.Errorf("cache: %w", err))
	}

	if !allowCreate {
		obs.WalletResolutionsTotal.WithLabelValues("not_found").Inc()
		return models.WalletRecord{}, ErrWalletNotFound
	}
	return r.create(ctx, owner, tierErrs)
}

// create generates key material and writes the new record tier by tier.
// Победителя гонки определяет PutNew; проигравший принимает чужую запись
// и выбрасывает свой ключ.
func (r *Resolver) create(ctx context.Context, owner string, tierErrs []error) (models.WalletRecord, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		obs.WalletResolutionsTotal.WithLabelValues("failed").Inc()
		return models.WalletRecord{}, resolutionFailed(append(tierErrs, fmt.Errorf("generate key: %w", err)))
	}

	now := time.Now()
	rec := models.WalletRecord{
		OwnerID:      owner,
		Address:      crypto.PubkeyToAddress(key.PublicKey).Hex(),
		PublicKey:    hex.EncodeToString(crypto.FromECDSAPub(&key.PublicKey)),
		PrivateKey:   hex.EncodeToString(crypto.FromECDSA(key)),
		Balance:      "0",
		Provenance:   models.WalletProvenanceCreated,
		CreatedAt:    now,
		LastAccessed: now,
	}

	err = retryErr(ctx, func() error { return r.secondary.PutNew(ctx, stripKey(rec)) })
	switch {
	case err == nil:
	case errors.Is(err, ErrExists):
		existing, getErr := r.secondary.Get(ctx, owner)
		if getErr != nil {
			obs.WalletResolutionsTotal.WithLabelValues("failed").Inc()
			return models.WalletRecord{}, resolutionFailed(append(tierErrs, fmt.Errorf("secondary: %w", getErr)))
		}
		existing.Provenance = models.WalletProvenanceSecondary
		existing = r.mergeCachedKey(ctx, existing)
		r.writeThrough(ctx, existing, false)
		obs.WalletResolutionsTotal.WithLabelValues(models.WalletProvenanceSecondary).Inc()
		return existing, nil
	default:
		obs.TierFailuresTotal.WithLabelValues("secondary").Inc()
		obs.WalletResolutionsTotal.WithLabelValues("failed").Inc()
		return models.WalletRecord{}, resolutionFailed(append(tierErrs, fmt.Errorf("secondary: %w", err)))
	}

	// Ключ хранится только в кэше владельца.
	if err := r.cache.Put(ctx, rec); err != nil {
		obs.TierFailuresTotal.WithLabelValues("cache").Inc()
		r.log.Error("cache write after creation failed, key material unavailable",
			zap.String("owner", owner), zap.String("address", rec.Address), zap.Error(err))
	}

	// Реестр регистрирует идемпотентно; его недоступность не срывает создание.
	err = retryErr(ctx, func() error { return r.ledger.Create(ctx, stripKey(rec)) })
	switch {
	case err == nil:
	case errors.Is(err, ErrExists):
		// Реестр уже держит кошелёк этого владельца, и его запись главнее.
		if existing, infoErr := r.ledger.Info(ctx, owner); infoErr == nil {
			existing.OwnerID = owner
			existing.Provenance = models.WalletProvenanceLedger
			r.writeThrough(ctx, existing, true)
			obs.WalletResolutionsTotal.WithLabelValues(models.WalletProvenanceLedger).Inc()
			return existing, nil
		}
		r.log.Warn("ledger holds an existing wallet but info is unavailable", zap.String("owner", owner))
	default:
		obs.TierFailuresTotal.WithLabelValues("ledger").Inc()
		r.log.Warn("ledger create failed", zap.String("owner", owner), zap.Error(err))
	}

	obs.WalletResolutionsTotal.WithLabelValues(models.WalletProvenanceCreated).Inc()
	r.log.Info("wallet created", zap.String("owner", owner), zap.String("address", rec.Address))
	return rec, nil
}

// mergeCachedKey fills rec.PrivateKey from the cache entry when the
// addresses agree. Записи из леджера и вторичного тира ключа не несут.
func (r *Resolver) mergeCachedKey(ctx context.Context, rec models.WalletRecord) models.WalletRecord {
	if rec.PrivateKey != "" {
		return rec
	}
	cached, err := r.cache.Get(ctx, rec.OwnerID)
	if err == nil && cached.PrivateKey != "" && strings.EqualFold(cached.Address, rec.Address) {
		rec.PrivateKey = cached.PrivateKey
	}
	return rec
}

// writeThrough repairs the tiers below a hit. Best effort: failures are
// logged, never returned.
func (r *Resolver) writeThrough(ctx context.Context, rec models.WalletRecord, includeSecondary bool) {
	if includeSecondary {
		if err := r.secondary.Put(ctx, stripKey(rec)); err != nil {
			r.log.Warn("secondary write-through failed", zap.String("owner", rec.OwnerID), zap.Error(err))
		}
	}
	rec.LastAccessed = time.Now()
	if err := r.cache.Put(ctx, rec); err != nil {
		r.log.Warn("cache write-through failed", zap.String("owner", rec.OwnerID), zap.Error(err))
	}
}

// stripKey drops private key material before a record leaves the owner's
// local tier.
func stripKey(rec models.WalletRecord) models.WalletRecord {
	rec.PrivateKey = ""
	return rec
}

// retryRecord calls fn, retrying once when the tier looks unreachable.
// Подтверждённое отсутствие не повторяется.
func retryRecord(ctx context.Context, fn func() (models.WalletRecord, error)) (models.WalletRecord, error) {
	rec, err := fn()
	if err == nil || errors.Is(err, ErrNotFound) || ctx.Err() != nil {
		return rec, err
	}
	return fn()
}

func retryErr(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, ErrExists) || ctx.Err() != nil {
		return err
	}
	return fn()
}

func resolutionFailed(errs []error) error {
	if len(errs) == 0 {
		return ErrResolutionFailed
	}
	return fmt.Errorf("%w: %w", ErrResolutionFailed, errors.Join(errs...))
}
