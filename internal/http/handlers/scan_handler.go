package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/desmond009/TollCrypt-sub002/internal/http/dto"
	"github.com/desmond009/TollCrypt-sub002/internal/models"
	"github.com/desmond009/TollCrypt-sub002/internal/services"
)

type ScanHandler struct {
	scanService *services.ScanService
	log         *zap.Logger
}

func NewScanHandler(scanService *services.ScanService, log *zap.Logger) *ScanHandler {
	return &ScanHandler{scanService: scanService, log: log}
}

// Scan проверяет QR-авторизацию. Эндпоинт для приложений инспектора
// и операторских сканеров, ходит под JWT.
// POST /scan
func (h *ScanHandler) Scan(c *fiber.Ctx) error {
	var req dto.ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "content is required"})
	}
	if req.BoothID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "booth_id is required"})
	}

	result, err := h.scanService.ProcessScan(c.Context(), services.ScanInput{
		Content: req.Content,
		BoothID: req.BoothID,
		Lat:     req.Lat,
		Lng:     req.Lng,
	})
	if err != nil {
		h.log.Error("scan processing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: result})
}

// HardwareScan принимает пакет от придорожной будки: QR, а если его
// нет, хотя бы распознанный номер. Ответ несёт цвет для светодиода.
// POST /hardware/scan
func (h *ScanHandler) HardwareScan(c *fiber.Ctx) error {
	var req dto.HardwareScanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request body"})
	}
	if req.BoothID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "booth_id is required"})
	}
	if req.Content == "" && req.PlateNumber == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "content or plate_number is required"})
	}

	in := services.ScanInput{
		Content: req.Content,
		BoothID: req.BoothID,
		Lat:     req.Lat,
		Lng:     req.Lng,
	}

	var result *services.ScanResult
	var err error
	if req.Content != "" {
		result, err = h.scanService.ProcessScan(c.Context(), in)
	} else {
		result, err = h.scanService.LookupPlate(c.Context(), in, req.PlateNumber)
	}
	if err != nil {
		h.log.Error("hardware scan failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
	}

	return c.JSON(dto.HardwareScanResponse{
		Status: ledStatus(result.Verdict),
		Result: result,
	})
}

// ledStatus — что зажечь водителю.
func ledStatus(verdict string) string {
	switch verdict {
	case models.TransitVerdictAccepted, models.TransitVerdictRegistered:
		return "green"
	default:
		return "red"
	}
}
