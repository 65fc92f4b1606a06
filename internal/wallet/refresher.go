package wallet

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/events"
	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/desmond009/TollCrypt-sub002/internal/obs"
)

// Refresher reconciles displayed balances against the chain without ever
// failing the caller. Худший случай — прежний баланс с пометкой stale.
type Refresher struct {
	reader    BalanceReader
	secondary SecondaryTier
	cache     CacheTier
	pub       events.Publisher
	log       *zap.Logger
}

func NewRefresher(reader BalanceReader, secondary SecondaryTier, cache CacheTier, pub events.Publisher, log *zap.Logger) *Refresher {
	return &Refresher{
		reader:    reader,
		secondary: secondary,
		cache:     cache,
		pub:       pub,
		log:       log,
	}
}

// RefreshNow reads the freshest balance available: chain first, then the
// secondary replica, then whatever the cache last saw.
func (f *Refresher) RefreshNow(ctx context.Context, ownerID, address string) models.BalanceStatus {
	owner := NormalizeOwner(ownerID)
	now := time.Now()

	balance, err := f.reader.BalanceOf(ctx, address)
	if err == nil {
		f.storeFresh(ctx, owner, address, balance)
		obs.BalanceRefreshTotal.WithLabelValues(models.BalanceSourceChain).Inc()
		return models.BalanceStatus{
			OwnerID:   owner,
			Address:   address,
			Balance:   balance,
			Source:    models.BalanceSourceChain,
			CheckedAt: now,
		}
	}
	f.log.Warn("chain balance read failed", zap.String("address", address), zap.Error(err))

	if rec, getErr := f.secondary.Get(ctx, owner); getErr == nil && rec.Balance != "" {
		f.touchCacheBalance(ctx, owner, rec.Balance)
		obs.BalanceRefreshTotal.WithLabelValues(models.BalanceSourceSecondary).Inc()
		return models.BalanceStatus{
			OwnerID:   owner,
			Address:   address,
			Balance:   rec.Balance,
			Source:    models.BalanceSourceSecondary,
			CheckedAt: now,
		}
	}

	if rec, getErr := f.cache.Get(ctx, owner); getErr == nil && rec.Balance != "" {
		obs.BalanceRefreshTotal.WithLabelValues(models.BalanceSourceCache).Inc()
		return models.BalanceStatus{
			OwnerID:   owner,
			Address:   address,
			Balance:   rec.Balance,
			Source:    models.BalanceSourceCache,
			Stale:     true,
			CheckedAt: now,
		}
	}

	obs.BalanceRefreshTotal.WithLabelValues(models.BalanceSourceNone).Inc()
	return models.BalanceStatus{
		OwnerID:   owner,
		Address:   address,
		Balance:   "0",
		Source:    models.BalanceSourceNone,
		Stale:     true,
		CheckedAt: now,
	}
}

// storeFresh pushes a chain-confirmed balance down the tiers and notifies
// subscribers. Все записи best effort.
func (f *Refresher) storeFresh(ctx context.Context, owner, address, balance string) {
	f.touchCacheBalance(ctx, owner, balance)

	if err := f.secondary.UpdateBalance(ctx, owner, balance); err != nil {
		f.log.Warn("secondary balance update failed", zap.String("owner", owner), zap.Error(err))
	}

	if f.pub == nil {
		return
	}
	ev := events.Event{
		Type: events.EventBalanceRefreshed,
		Payload: map[string]any{
			"owner_id": owner,
			"address":  address,
			"balance":  balance,
		},
	}
	if err := f.pub.Publish(ctx, events.StreamToll, ev); err != nil {
		f.log.Warn("balance event publish failed", zap.String("owner", owner), zap.Error(err))
	}
}

func (f *Refresher) touchCacheBalance(ctx context.Context, owner, balance string) {
	rec, err := f.cache.Get(ctx, owner)
	if err != nil {
		return
	}
	rec.Balance = balance
	rec.LastAccessed = time.Now()
	if err := f.cache.Put(ctx, rec); err != nil {
		f.log.Warn("cache balance update failed", zap.String("owner", owner), zap.Error(err))
	}
}
