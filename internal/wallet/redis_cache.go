package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/desmond009/TollCrypt-sub002/internal/models"
)

const cacheKeyPrefix = "wallet:"

// cacheEnvelope переносит приватный ключ явно: WalletRecord прячет его
// от JSON-сериализации.
type cacheEnvelope struct {
	OwnerID      string    `json:"owner_id"`
	Address      string    `json:"address"`
	PublicKey    string    `json:"public_key"`
	PrivateKey   string    `json:"private_key,omitempty"`
	Balance      string    `json:"balance"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// RedisCache is the hot CacheTier. Last writer wins; the Redis TTL
// mirrors the 30-day staleness window measured from LastAccessed.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = models.WalletCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, ownerID string) (models.WalletRecord, error) {
	raw, err := c.client.Get(ctx, cacheKeyPrefix+ownerID).Result()
	if errors.Is(err, redis.Nil) {
		return models.WalletRecord{}, ErrNotFound
	}
	if err != nil {
		return models.WalletRecord{}, fmt.Errorf("cache get: %w", err)
	}

	var env cacheEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		// битую запись выбрасываем как промах
		c.client.Del(ctx, cacheKeyPrefix+ownerID)
		return models.WalletRecord{}, fmt.Errorf("%w: corrupt cache entry", ErrNotFound)
	}

	return models.WalletRecord{
		OwnerID:      env.OwnerID,
		Address:      env.Address,
		PublicKey:    env.PublicKey,
		PrivateKey:   env.PrivateKey,
		Balance:      env.Balance,
		Provenance:   models.WalletProvenanceCache,
		CreatedAt:    env.CreatedAt,
		LastAccessed: env.LastAccessed,
	}, nil
}

func (c *RedisCache) Put(ctx context.Context, rec models.WalletRecord) error {
	data, err := json.Marshal(cacheEnvelope{
		OwnerID:      rec.OwnerID,
		Address:      rec.Address,
		PublicKey:    rec.PublicKey,
		PrivateKey:   rec.PrivateKey,
		Balance:      rec.Balance,
		CreatedAt:    rec.CreatedAt,
		LastAccessed: rec.LastAccessed,
	})
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := c.client.Set(ctx, cacheKeyPrefix+rec.OwnerID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, ownerID string) error {
	if err := c.client.Del(ctx, cacheKeyPrefix+ownerID).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}
