package handler

import (
	"logistics-console/internal/core/apperr"
	"logistics-console/internal/core/logger"
	"logistics-console/internal/features/trips/ports"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// TripHandler handles HTTP requests for trip-level operations.
type TripHandler struct {
	capacity ports.CapacityService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(capacity ports.CapacityService) *TripHandler {
	return &TripHandler{capacity: capacity}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// CapacityCheckRequest represents a candidate shipment's load.
type CapacityCheckRequest struct {
	WeightKg  float64 `json:"weight_kg"`
	VolumeCbm float64 `json:"volume_cbm"`
}

// CheckCapacity godoc
// @Summary Validate a candidate shipment against trip capacity
// @Description Sums the load mapped to the trip plus the candidate and compares it against the vehicle capacity. Part-load trips only.
// @Tags trips
// @Accept json
// @Produce json
// @Param id path string true "Trip ID"
// @Param load body CapacityCheckRequest true "Candidate load"
// @Success 200 {object} ports.CapacityResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /trips/{id}/capacity-check [post]
func (h *TripHandler) CheckCapacity(c *fiber.Ctx) error {
	var req CapacityCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid request body",
			RayID:   rayID(c),
		})
	}

	result, err := h.capacity.ValidateCapacity(c.Context(), c.Params("id"), req.WeightKg, req.VolumeCbm)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Message: err.Error(), RayID: rayID(c)})
		}
		logger.Get().Error("capacity check failed", zap.Error(err), zap.String("ray_id", rayID(c)))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Message: "internal server error", RayID: rayID(c)})
	}

	return c.JSON(result)
}

// rayID extracts the request id set by the requestid middleware.
func rayID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
