package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/config"
	"github.com/desmond009/TollCrypt-sub002/internal/db"
	"github.com/desmond009/TollCrypt-sub002/internal/events"
	"github.com/desmond009/TollCrypt-sub002/internal/repositories"
	"github.com/desmond009/TollCrypt-sub002/internal/wallet"
)

const (
	redisCursorBlock = "chain-indexer:cursor:block"
	redisProcessed   = "chain-indexer:tx:"
	processedTTL     = 7 * 24 * time.Hour
	pollInterval     = 5 * time.Second
	blockBatchSize   = 50
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.TollCollectionAddress == "" {
		log.Fatal("TOLL_COLLECTION_ADDRESS is required")
	}
	if !common.IsHexAddress(cfg.TollCollectionAddress) {
		log.Fatal("invalid TOLL_COLLECTION_ADDRESS", zap.String("addr", cfg.TollCollectionAddress))
	}
	collection := common.HexToAddress(cfg.TollCollectionAddress)

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	walletRepo := repositories.NewWalletRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)

	client, err := connectToChain(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to connect to rpc endpoint", zap.Error(err))
	}
	defer client.Close()

	signer := types.LatestSignerForChainID(big.NewInt(cfg.ChainID))

	log.Info("chain indexer started",
		zap.String("collection", collection.Hex()),
		zap.Int64("chain_id", cfg.ChainID),
	)

	initCursor(ctx, client, rdb, log)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			if err := pollAndProcess(ctx, client, signer, collection, walletRepo, publisher, rdb, log); err != nil {
				log.Error("poll cycle failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down chain indexer")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// connectToChain dials the configured endpoints in order and returns the
// first one that answers with the expected chain id.
func connectToChain(ctx context.Context, cfg *config.Config, log *zap.Logger) (*ethclient.Client, error) {
	var errs []error
	for _, endpoint := range cfg.ChainRPCEndpoints {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.ChainRPCTimeout)
		client, err := ethclient.DialContext(dialCtx, endpoint)
		if err != nil {
			cancel()
			errs = append(errs, fmt.Errorf("dial %s: %w", endpoint, err))
			continue
		}

		chainID, err := client.ChainID(dialCtx)
		cancel()
		if err != nil {
			client.Close()
			errs = append(errs, fmt.Errorf("chain id %s: %w", endpoint, err))
			continue
		}
		if chainID.Int64() != cfg.ChainID {
			client.Close()
			errs = append(errs, fmt.Errorf("%s: chain id %d, expected %d", endpoint, chainID.Int64(), cfg.ChainID))
			continue
		}

		log.Info("connected to rpc endpoint", zap.String("endpoint", endpoint))
		return client, nil
	}
	return nil, errors.Join(errs...)
}

// initCursor sets the initial cursor position on first run: the current
// chain head, so that only NEW blocks (mined after startup) are scanned.
func initCursor(ctx context.Context, client *ethclient.Client, rdb *redis.Client, log *zap.Logger) {
	existing, _ := rdb.Get(ctx, redisCursorBlock).Result()
	if existing != "" {
		log.Info("resuming from saved cursor", zap.String("block", existing))
		return
	}

	head, err := client.BlockNumber(ctx)
	if err != nil {
		// Курсор останется пустым, pollAndProcess доинициализирует.
		log.Warn("failed to get chain head for cursor init", zap.Error(err))
		return
	}

	saveCursor(ctx, rdb, head)
	log.Info("cursor initialized at current head (skipping historical blocks)",
		zap.Uint64("block", head))
}

func loadCursor(ctx context.Context, rdb *redis.Client) uint64 {
	val, err := rdb.Get(ctx, redisCursorBlock).Result()
	if err != nil || val == "" {
		return 0
	}
	block, _ := new(big.Int).SetString(val, 10)
	if block == nil {
		return 0
	}
	return block.Uint64()
}

func saveCursor(ctx context.Context, rdb *redis.Client, block uint64) {
	rdb.Set(ctx, redisCursorBlock, new(big.Int).SetUint64(block).String(), 0)
}

// pollAndProcess runs a single poll cycle:
// 1. Compare the chain head with the cursor
// 2. Walk the new blocks (bounded batch per cycle)
// 3. Publish debit events for transfers into the collection address
// 4. Advance the cursor block by block
func pollAndProcess(
	ctx context.Context,
	client *ethclient.Client,
	signer types.Signer,
	collection common.Address,
	walletRepo *repositories.WalletRepo,
	publisher events.Publisher,
	rdb *redis.Client,
	log *zap.Logger,
) error {
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return fmt.Errorf("get chain head: %w", err)
	}

	cursor := loadCursor(ctx, rdb)
	if cursor == 0 {
		saveCursor(ctx, rdb, head)
		log.Info("cursor initialized at current head", zap.Uint64("block", head))
		return nil
	}

	if head <= cursor {
		return nil
	}

	to := head
	if to > cursor+blockBatchSize {
		to = cursor + blockBatchSize
	}

	for number := cursor + 1; number <= to; number++ {
		if ctx.Err() != nil {
			return nil
		}

		block, err := client.BlockByNumber(ctx, new(big.Int).SetUint64(number))
		if err != nil {
			return fmt.Errorf("get block %d: %w", number, err)
		}

		for _, tx := range block.Transactions() {
			processTx(ctx, tx, signer, collection, walletRepo, publisher, rdb, log)
		}

		// Курсор двигаем поблочно: рестарт не перечитает обработанное.
		saveCursor(ctx, rdb, number)
	}

	if to-cursor > 1 {
		log.Info("scanned blocks", zap.Uint64("from", cursor+1), zap.Uint64("to", to))
	}
	return nil
}

// processTx handles a single transaction: if it pays the collection
// address from a known toll wallet, a debit event goes out and the
// worker refreshes that wallet's cached balance.
func processTx(
	ctx context.Context,
	tx *types.Transaction,
	signer types.Signer,
	collection common.Address,
	walletRepo *repositories.WalletRepo,
	publisher events.Publisher,
	rdb *redis.Client,
	log *zap.Logger,
) {
	if tx.To() == nil || *tx.To() != collection {
		return
	}
	if tx.Value().Sign() <= 0 {
		return
	}

	// Idempotency: skip if already processed
	txHash := tx.Hash().Hex()
	txKey := redisProcessed + txHash
	if rdb.Exists(ctx, txKey).Val() > 0 {
		return
	}

	from, err := types.Sender(signer, tx)
	if err != nil {
		log.Debug("cannot recover tx sender", zap.String("tx", txHash), zap.Error(err))
		rdb.Set(ctx, txKey, "no_sender", processedTTL)
		return
	}

	rec, err := walletRepo.GetByAddress(ctx, from.Hex())
	if err != nil {
		if !errors.Is(err, wallet.ErrNotFound) {
			// Не помечаем: на следующем цикле попробуем ещё раз.
			log.Error("wallet lookup failed", zap.String("tx", txHash), zap.Error(err))
			return
		}
		log.Debug("payment from unknown wallet, skipping",
			zap.String("tx", txHash),
			zap.String("from", from.Hex()),
		)
		rdb.Set(ctx, txKey, "unknown_sender", processedTTL)
		return
	}

	_ = publisher.Publish(ctx, events.StreamToll, events.Event{
		Type: events.EventTollDebitDetected,
		Payload: map[string]any{
			"owner_id": rec.OwnerID,
			"address":  rec.Address,
			"amount":   tx.Value().String(),
			"tx_hash":  txHash,
		},
	})

	rdb.Set(ctx, txKey, "debit:"+rec.OwnerID, processedTTL)

	log.Info("toll debit detected",
		zap.String("owner", rec.OwnerID),
		zap.String("from", from.Hex()),
		zap.String("amount", tx.Value().String()),
		zap.String("tx", txHash),
	)
}
