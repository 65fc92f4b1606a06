package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/config"
	"github.com/desmond009/TollCrypt-sub002/internal/db"
	"github.com/desmond009/TollCrypt-sub002/internal/events"
	apphttp "github.com/desmond009/TollCrypt-sub002/internal/http"
	"github.com/desmond009/TollCrypt-sub002/internal/http/handlers"
	"github.com/desmond009/TollCrypt-sub002/internal/ledger"
	"github.com/desmond009/TollCrypt-sub002/internal/obs"
	"github.com/desmond009/TollCrypt-sub002/internal/repositories"
	"github.com/desmond009/TollCrypt-sub002/internal/services"
	"github.com/desmond009/TollCrypt-sub002/internal/tariff"
	"github.com/desmond009/TollCrypt-sub002/internal/tollpass"
	"github.com/desmond009/TollCrypt-sub002/internal/wallet"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Metrics
	obs.Init()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	vehicleRepo := repositories.NewVehicleRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	transitRepo := repositories.NewTransitRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Wallet tiers: леджер → постгрес → редис
	registry := ledger.NewRegistryClient(cfg.LedgerRegistryURL, cfg.LedgerRequestTimeout, log)
	cache := wallet.NewRedisCache(rdb, cfg.WalletCacheTTL)
	resolver := wallet.NewResolver(registry, walletRepo, cache, cfg.WalletCacheTTL, log)
	reader := ledger.NewRPCBalanceReader(cfg.ChainRPCEndpoints, cfg.ChainRPCTimeout, log)
	refresher := wallet.NewRefresher(reader, walletRepo, cache, publisher, log)

	// Tariffs: стартуем с дефолтов, обновления приезжают событием от воркера
	tariffs := tariff.NewTable()
	_ = subscriber.Subscribe(ctx, events.StreamToll, func(event events.Event) {
		if event.Type != events.EventTariffUpdated {
			return
		}
		raw, _ := event.Payload["rates"].(map[string]any)
		rates := make(map[string]string, len(raw))
		for class, rate := range raw {
			if s, ok := rate.(string); ok {
				rates[class] = s
			}
		}
		if err := tariffs.Replace(rates); err != nil {
			log.Warn("tariff update rejected", zap.Error(err))
			return
		}
		log.Info("tariff table updated", zap.Int("classes", len(rates)))
	})

	// Services
	validator := tollpass.NewValidator(cfg.AuthorizationMaxAge)
	walletService := services.NewWalletService(resolver, refresher, userRepo, auditRepo, publisher, log)
	passService := services.NewPassService(vehicleRepo, userRepo, auditRepo, resolver, tariffs, cfg, log)
	scanService := services.NewScanService(validator, resolver, refresher, transitRepo, vehicleRepo, auditRepo, tariffs, rdb, publisher, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, cfg, log)
	userHandler := handlers.NewUserHandler(userRepo, log)
	walletHandler := handlers.NewWalletHandler(walletService, log)
	vehicleHandler := handlers.NewVehicleHandler(vehicleRepo, auditRepo, log)
	passHandler := handlers.NewPassHandler(passService, log)
	scanHandler := handlers.NewScanHandler(scanService, log)
	transitHandler := handlers.NewTransitHandler(walletService, transitRepo, log)
	metaHandler := handlers.NewMetaHandler(tariffs)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, userHandler, walletHandler, vehicleHandler, passHandler, scanHandler, transitHandler, metaHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
