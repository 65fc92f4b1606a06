package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/auth"
	"github.com/desmond009/TollCrypt-sub002/internal/config"
)

const (
	CtxUserID  = "user_id"
	CtxSubject = "subject"
)

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization header"})
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid authorization format"})
		}

		claims, err := auth.ParseJWT(cfg.JWTSecret, tokenStr)
		if err != nil {
			log.Debug("jwt parse error", zap.Error(err))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid or expired token"})
		}

		c.Locals(CtxUserID, claims.UserID)
		c.Locals(CtxSubject, claims.Subject)

		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxUserID).(uuid.UUID)
	return id
}

func GetSubject(c *fiber.Ctx) string {
	subject, _ := c.Locals(CtxSubject).(string)
	return subject
}

// HardwareAuthMiddleware authenticates roadside units by shared key.
// Будки не ходят через шлюз и JWT не носят.
func HardwareAuthMiddleware(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cfg.HardwareAPIKey == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "hardware ingestion is not configured"})
		}
		key := c.Get("X-Hardware-Key")
		if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.HardwareAPIKey)) != 1 {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "hardware access required"})
		}
		return c.Next()
	}
}
