package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/http/dto"
	"github.com/desmond009/TollCrypt-sub002/internal/middleware"
	"github.com/desmond009/TollCrypt-sub002/internal/services"
	"github.com/desmond009/TollCrypt-sub002/internal/wallet"
)

type WalletHandler struct {
	walletService *services.WalletService
	log           *zap.Logger
}

func NewWalletHandler(walletService *services.WalletService, log *zap.Logger) *WalletHandler {
	return &WalletHandler{walletService: walletService, log: log}
}

// GetWallet возвращает кошелёк владельца, если он заведён.
// GET /me/wallet
func (h *WalletHandler) GetWallet(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	rec, err := h.walletService.GetWallet(c.Context(), userID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "wallet not found"})
		}
		h.log.Error("wallet lookup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: rec})
}

// CreateWallet заводит кошелёк. Приватный ключ отдаётся один раз,
// только в ответе на создавший запрос.
// POST /me/wallet
func (h *WalletHandler) CreateWallet(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	rec, created, err := h.walletService.CreateWallet(c.Context(), userID)
	if err != nil {
		if errors.Is(err, wallet.ErrResolutionFailed) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "wallet creation is temporarily unavailable"})
		}
		h.log.Error("wallet creation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	resp := dto.WalletCreatedResponse{Wallet: rec, Created: created}
	if created {
		resp.PrivateKey = rec.PrivateKey
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(dto.SuccessResponse{OK: true, Data: resp})
}

// GetBalance отдаёт баланс из хранилища, без похода в сеть.
// GET /me/wallet/balance
func (h *WalletHandler) GetBalance(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	status, err := h.walletService.Balance(c.Context(), userID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "wallet not found"})
		}
		h.log.Error("balance lookup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: status})
}

// RefreshBalance перечитывает баланс из сети с фолбэком по тирам.
// POST /me/wallet/refresh
func (h *WalletHandler) RefreshBalance(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	status, err := h.walletService.RefreshBalance(c.Context(), userID)
	if err != nil {
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "wallet not found"})
		}
		h.log.Error("balance refresh failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: status})
}
