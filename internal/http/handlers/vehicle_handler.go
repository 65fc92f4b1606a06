package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/http/dto"
	"github.com/desmond009/TollCrypt-sub002/internal/middleware"
	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/desmond009/TollCrypt-sub002/internal/repositories"
)

type VehicleHandler struct {
	vehicleRepo *repositories.VehicleRepo
	auditRepo   *repositories.AuditRepo
	log         *zap.Logger
}

func NewVehicleHandler(vehicleRepo *repositories.VehicleRepo, auditRepo *repositories.AuditRepo, log *zap.Logger) *VehicleHandler {
	return &VehicleHandler{vehicleRepo: vehicleRepo, auditRepo: auditRepo, log: log}
}

// CreateVehicle регистрирует машину владельца. Повторная регистрация
// того же номера обновляет тип, это апсерт.
// POST /me/vehicles
func (h *VehicleHandler) CreateVehicle(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	var req dto.CreateVehicleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}

	if !models.IsValidPlateNumber(req.PlateNumber) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "plate_number must be 10-15 characters"})
	}
	if req.VehicleType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "vehicle_type is required"})
	}

	vehicle := &models.Vehicle{
		OwnerUserID:  userID,
		PlateNumber:  req.PlateNumber,
		VehicleType:  req.VehicleType,
		VehicleClass: models.VehicleClassForType(req.VehicleType),
	}
	if err := h.vehicleRepo.Create(c.Context(), vehicle); err != nil {
		h.log.Error("failed to create vehicle", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	_ = h.auditRepo.Log(c.Context(), models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      "vehicle_registered",
		EntityType:  "vehicle",
		EntityID:    &vehicle.ID,
		Meta:        map[string]any{"class": vehicle.VehicleClass},
	})

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: vehicle})
}

// GET /me/vehicles
func (h *VehicleHandler) ListVehicles(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	vehicles, err := h.vehicleRepo.ListByOwner(c.Context(), userID)
	if err != nil {
		h.log.Error("failed to list vehicles", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: vehicles})
}

// GetVehicleAudit отдаёт журнал действий по машине: регистрация,
// выпуски пропусков, удаление.
// GET /me/vehicles/:id/audit
func (h *VehicleHandler) GetVehicleAudit(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	vehicleID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid vehicle id"})
	}

	vehicle, err := h.vehicleRepo.GetByID(c.Context(), vehicleID)
	if err != nil || vehicle.OwnerUserID != userID {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "vehicle not found"})
	}

	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	logs, err := h.auditRepo.GetByEntity(c.Context(), "vehicle", vehicleID, limit, offset)
	if err != nil {
		h.log.Error("failed to load vehicle audit", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}

// DELETE /me/vehicles/:id
func (h *VehicleHandler) DeleteVehicle(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)

	vehicleID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid vehicle id"})
	}

	deleted, err := h.vehicleRepo.Delete(c.Context(), vehicleID, userID)
	if err != nil {
		h.log.Error("failed to delete vehicle", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "vehicle not found"})
	}

	_ = h.auditRepo.Log(c.Context(), models.AuditLog{
		ActorUserID: &userID,
		ActorType:   "user",
		Action:      "vehicle_removed",
		EntityType:  "vehicle",
		EntityID:    &vehicleID,
	})

	return c.JSON(dto.SuccessResponse{OK: true})
}
