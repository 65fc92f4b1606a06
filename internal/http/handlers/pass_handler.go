package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/http/dto"
	"github.com/desmond009/TollCrypt-sub002/internal/middleware"
	"github.com/desmond009/TollCrypt-sub002/internal/services"
	"github.com/desmond009/TollCrypt-sub002/internal/tollpass"
	"github.com/desmond009/TollCrypt-sub002/internal/wallet"
)

type PassHandler struct {
	passService *services.PassService
	log         *zap.Logger
}

func NewPassHandler(passService *services.PassService, log *zap.Logger) *PassHandler {
	return &PassHandler{passService: passService, log: log}
}

// IssuePass выпускает подписанную QR-авторизацию на один проезд.
// POST /passes
func (h *PassHandler) IssuePass(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req dto.IssuePassRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	vehicleID, err := uuid.Parse(req.VehicleID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid vehicle_id"})
	}

	pass, err := h.passService.IssuePass(c.Context(), userID, vehicleID, req.RateHint)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrVehicleNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "vehicle not found"})
		case errors.Is(err, services.ErrNotVehicleOwner):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "vehicle belongs to another user"})
		case errors.Is(err, tollpass.ErrSigningUnavailable):
			// Ключ владельца недоступен этому инстансу: запись есть,
			// подписать нечем. Клиент может восстановить ключ заново.
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "signing unavailable for this wallet"})
		case errors.Is(err, tollpass.ErrSigningDeclined):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "signing declined"})
		case errors.Is(err, wallet.ErrResolutionFailed):
			return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Error: "wallet is temporarily unavailable"})
		}
		h.log.Error("pass issue failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: pass})
}
