package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/http/dto"
	"github.com/desmond009/TollCrypt-sub002/internal/middleware"
	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/desmond009/TollCrypt-sub002/internal/repositories"
	"github.com/desmond009/TollCrypt-sub002/internal/services"
	"github.com/desmond009/TollCrypt-sub002/internal/wallet"
)

type TransitHandler struct {
	walletService *services.WalletService
	transitRepo   *repositories.TransitRepo
	log           *zap.Logger
}

func NewTransitHandler(walletService *services.WalletService, transitRepo *repositories.TransitRepo, log *zap.Logger) *TransitHandler {
	return &TransitHandler{walletService: walletService, transitRepo: transitRepo, log: log}
}

// ListMine returns the caller's transit history, newest first.
// GET /me/transits?limit=50
func (h *TransitHandler) ListMine(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	rec, err := h.walletService.GetWallet(c.Context(), userID)
	if err != nil {
		// Нет кошелька — нечем было платить, истории нет.
		if errors.Is(err, wallet.ErrWalletNotFound) {
			return c.JSON(dto.SuccessResponse{OK: true, Data: []models.TransitEvent{}})
		}
		h.log.Error("wallet resolve for history failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "failed to load transit history"})
	}

	events, err := h.transitRepo.ListByWallet(c.Context(), rec.Address, queryLimit(c))
	if err != nil {
		h.log.Error("transit history query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "failed to load transit history"})
	}
	if events == nil {
		events = []models.TransitEvent{}
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: events})
}

// RecentByBooth feeds the booth operator console.
// GET /hardware/booths/:booth_id/recent?limit=50
func (h *TransitHandler) RecentByBooth(c *fiber.Ctx) error {
	boothID := c.Params("booth_id")
	if boothID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "booth_id is required"})
	}

	events, err := h.transitRepo.RecentByBooth(c.Context(), boothID, queryLimit(c))
	if err != nil {
		h.log.Error("booth feed query failed", zap.String("booth_id", boothID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "failed to load booth feed"})
	}
	if events == nil {
		events = []models.TransitEvent{}
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: events})
}

func queryLimit(c *fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
