package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/desmond009/TollCrypt-sub002/internal/http/dto"
	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/desmond009/TollCrypt-sub002/internal/tariff"
)

type MetaHandler struct {
	tariffs *tariff.Table
}

func NewMetaHandler(tariffs *tariff.Table) *MetaHandler {
	return &MetaHandler{tariffs: tariffs}
}

func (h *MetaHandler) GetVehicleClasses(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.VehicleClassesResponse{
		Classes: models.AllVehicleClasses(),
	}})
}

func (h *MetaHandler) GetTariffs(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.TariffsResponse{
		Rates:     h.tariffs.Snapshot(),
		UpdatedAt: h.tariffs.UpdatedAt().Format(time.RFC3339),
	}})
}
