package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/config"
	"github.com/desmond009/TollCrypt-sub002/internal/http/handlers"
	"github.com/desmond009/TollCrypt-sub002/internal/middleware"
	"github.com/desmond009/TollCrypt-sub002/internal/obs"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	walletHandler *handlers.WalletHandler,
	vehicleHandler *handlers.VehicleHandler,
	passHandler *handlers.PassHandler,
	scanHandler *handlers.ScanHandler,
	transitHandler *handlers.TransitHandler,
	metaHandler *handlers.MetaHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Hardware-Key",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Prometheus
	app.Get("/metrics", adaptor.HTTPHandler(obs.Handler()))

	api := app.Group("/api/v1")

	// Auth (public). Жёстче остальных: подбор подписи assertion.
	api.Post("/auth/session", middleware.RateLimitMiddleware(rdb, "auth", 30, time.Minute), authHandler.CreateSession)

	// Hardware ingestion (roadside units, shared-key auth). Своя квота:
	// многополосная плаза сидит за одним NAT.
	hardware := api.Group("/hardware",
		middleware.RateLimitMiddleware(rdb, "hw", 600, time.Minute),
		middleware.HardwareAuthMiddleware(cfg))
	hardware.Post("/scan", scanHandler.HardwareScan)
	hardware.Get("/booths/:booth_id/recent", transitHandler.RecentByBooth)

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, "api", 100, time.Minute))

	// Meta (public, no auth required)
	api.Get("/meta/vehicle-classes", metaHandler.GetVehicleClasses)
	api.Get("/meta/tariffs", metaHandler.GetTariffs)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Post("/me/ping", userHandler.Ping)
	protected.Put("/me/display-name", userHandler.SetDisplayName)

	// Wallet
	protected.Get("/me/wallet", walletHandler.GetWallet)
	protected.Post("/me/wallet", walletHandler.CreateWallet)
	protected.Get("/me/wallet/balance", walletHandler.GetBalance)
	protected.Post("/me/wallet/refresh", walletHandler.RefreshBalance)

	// Vehicles
	protected.Post("/me/vehicles", vehicleHandler.CreateVehicle)
	protected.Get("/me/vehicles", vehicleHandler.ListVehicles)
	protected.Get("/me/vehicles/:id/audit", vehicleHandler.GetVehicleAudit)
	protected.Delete("/me/vehicles/:id", vehicleHandler.DeleteVehicle)

	// Passes
	protected.Post("/passes", passHandler.IssuePass)

	// Transit history
	protected.Get("/me/transits", transitHandler.ListMine)

	// Scanning (inspector apps)
	protected.Post("/scan", scanHandler.Scan)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
