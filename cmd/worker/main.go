package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/config"
	"github.com/desmond009/TollCrypt-sub002/internal/db"
	"github.com/desmond009/TollCrypt-sub002/internal/events"
	"github.com/desmond009/TollCrypt-sub002/internal/ledger"
	"github.com/desmond009/TollCrypt-sub002/internal/obs"
	"github.com/desmond009/TollCrypt-sub002/internal/repositories"
	"github.com/desmond009/TollCrypt-sub002/internal/tariff"
	"github.com/desmond009/TollCrypt-sub002/internal/wallet"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	obs.Init()

	// Wallet plumbing: воркеру не нужен резолвер, только refresher
	walletRepo := repositories.NewWalletRepo(pool)
	cache := wallet.NewRedisCache(rdb, cfg.WalletCacheTTL)
	reader := ledger.NewRPCBalanceReader(cfg.ChainRPCEndpoints, cfg.ChainRPCTimeout, log)
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)
	refresher := wallet.NewRefresher(reader, walletRepo, cache, publisher, log)

	tariffs := tariff.NewTable()
	parser := tariff.NewParser(cfg.TariffFetchTimeoutMS, cfg.TariffFetchMaxRetries, log)

	// Дебит на адресе сбора — сразу перечитываем баланс плательщика.
	_ = subscriber.Subscribe(ctx, events.StreamToll, func(event events.Event) {
		if event.Type != events.EventTollDebitDetected {
			return
		}
		owner, _ := event.Payload["owner_id"].(string)
		address, _ := event.Payload["address"].(string)
		if owner == "" || address == "" {
			return
		}
		status := refresher.RefreshNow(ctx, owner, address)
		log.Info("balance refreshed after debit",
			zap.String("owner", owner),
			zap.String("source", status.Source))
	})

	// Health + metrics
	app := fiber.New()
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(obs.Handler()))
	go func() {
		addr := fmt.Sprintf(":%s", cfg.WorkerPort)
		if err := app.Listen(addr); err != nil {
			log.Error("worker http server stopped", zap.Error(err))
		}
	}()

	log.Info("worker started",
		zap.Duration("balance_interval", cfg.BalanceRefreshInterval),
		zap.Bool("tariff_refresh", cfg.TariffPageURL != ""))

	balanceTicker := time.NewTicker(cfg.BalanceRefreshInterval)
	tariffTicker := time.NewTicker(cfg.TariffRefreshInterval)
	defer balanceTicker.Stop()
	defer tariffTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-balanceTicker.C:
			runBalanceSweep(ctx, walletRepo, refresher, cfg, log)
		case <-tariffTicker.C:
			runTariffRefresh(ctx, parser, tariffs, publisher, cfg, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			_ = app.Shutdown()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runBalanceSweep перечитывает балансы недавно активных кошельков.
func runBalanceSweep(ctx context.Context, walletRepo *repositories.WalletRepo, refresher *wallet.Refresher, cfg *config.Config, log *zap.Logger) {
	recs, err := walletRepo.RecentlyActive(ctx, cfg.ActiveWalletWindow, 100)
	if err != nil {
		log.Error("failed to list active wallets", zap.Error(err))
		return
	}

	for _, rec := range recs {
		if ctx.Err() != nil {
			return
		}
		status := refresher.RefreshNow(ctx, rec.OwnerID, rec.Address)
		if status.Source != "chain" {
			log.Debug("sweep fell back",
				zap.String("owner", rec.OwnerID),
				zap.String("source", status.Source))
		}
		time.Sleep(200 * time.Millisecond) // rate limiting
	}

	log.Info("balance sweep done", zap.Int("wallets", len(recs)))
}

// runTariffRefresh перечитывает страницу тарифов и раздаёт новую
// таблицу событием; API-процессы применяют её у себя.
func runTariffRefresh(ctx context.Context, parser *tariff.Parser, tariffs *tariff.Table, publisher events.Publisher, cfg *config.Config, log *zap.Logger) {
	if cfg.TariffPageURL == "" {
		return
	}

	rates, err := parser.FetchAndParse(ctx, cfg.TariffPageURL)
	if err != nil {
		log.Warn("tariff page fetch failed", zap.Error(err))
		return
	}

	// Replace валидирует набор; кривая страница не уходит в эфир.
	if err := tariffs.Replace(rates); err != nil {
		log.Warn("parsed tariff table rejected", zap.Error(err))
		return
	}

	if err := publisher.Publish(ctx, events.StreamToll, events.Event{
		Type: events.EventTariffUpdated,
		Payload: map[string]any{
			"rates": tariffs.Snapshot(),
		},
	}); err != nil {
		log.Warn("tariff event publish failed", zap.Error(err))
		return
	}

	log.Info("tariff table refreshed", zap.Int("classes", len(rates)))
}
