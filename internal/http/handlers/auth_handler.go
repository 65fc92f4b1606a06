package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/auth"
	"github.com/desmond009/TollCrypt-sub002/internal/config"
	"github.com/desmond009/TollCrypt-sub002/internal/http/dto"
	"github.com/desmond009/TollCrypt-sub002/internal/repositories"
)

type AuthHandler struct {
	userRepo *repositories.UserRepo
	cfg      *config.Config
	log      *zap.Logger
}

func NewAuthHandler(userRepo *repositories.UserRepo, cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{userRepo: userRepo, cfg: cfg, log: log}
}

// CreateSession exchanges a gateway identity assertion for a JWT.
// Персональных данных здесь нет: subject уже анонимизирован шлюзом.
func (h *AuthHandler) CreateSession(c *fiber.Ctx) error {
	var req dto.AuthSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	if req.Subject == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "subject is required"})
	}

	err := auth.ValidateIdentityAssertion(req.Subject, req.IssuedAt, req.Signature, h.cfg.GatewaySecret, h.cfg.AssertionMaxAge)
	if err != nil {
		h.log.Debug("assertion validation failed", zap.Error(err))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	user, err := h.userRepo.UpsertBySubject(c.Context(), req.Subject)
	if err != nil {
		h.log.Error("failed to upsert user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, user.ID, user.Subject, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("failed to generate jwt", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.AuthResponse{
		Token: token,
		User:  user,
	})
}
