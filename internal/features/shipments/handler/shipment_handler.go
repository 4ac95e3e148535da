package handler

import (
	"logistics-console/internal/core/apperr"
	"logistics-console/internal/core/logger"
	"logistics-console/internal/features/shipments/domain"
	"logistics-console/internal/features/shipments/ports"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ShipmentHandler handles HTTP requests for shipment lifecycle operations.
type ShipmentHandler struct {
	service ports.StatusService
}

// NewShipmentHandler creates a new ShipmentHandler.
func NewShipmentHandler(service ports.StatusService) *ShipmentHandler {
	return &ShipmentHandler{service: service}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// TransitionRequest represents the request body for a status transition.
type TransitionRequest struct {
	NewStatus    domain.Status          `json:"new_status"`
	NewSubStatus domain.SubStatus       `json:"new_sub_status,omitempty"`
	Source       domain.ChangeSource    `json:"source"`
	Notes        string                 `json:"notes,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Transition godoc
// @Summary Apply a status transition to a shipment
// @Description Validates and applies a main-status or sub-status transition, stamping timestamps and appending history
// @Tags shipments
// @Accept json
// @Produce json
// @Param id path string true "Shipment ID"
// @Param transition body TransitionRequest true "Transition details"
// @Success 200 {object} domain.Shipment
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /shipments/{id}/transition [post]
func (h *ShipmentHandler) Transition(c *fiber.Ctx) error {
	var req TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid request body",
			RayID:   rayID(c),
		})
	}

	if req.Source == "" {
		req.Source = domain.SourceAPI
	}

	shipment, err := h.service.Transition(c.Context(), c.Params("id"), ports.TransitionRequest{
		NewStatus:    req.NewStatus,
		NewSubStatus: req.NewSubStatus,
		Source:       req.Source,
		Notes:        req.Notes,
		Metadata:     req.Metadata,
	})
	if err != nil {
		return respondError(c, err, "failed to apply transition")
	}

	return c.JSON(shipment)
}

// History godoc
// @Summary Get the status history of a shipment
// @Description Returns the append-only status transition log, oldest first
// @Tags shipments
// @Produce json
// @Param id path string true "Shipment ID"
// @Success 200 {array} domain.StatusHistoryEntry
// @Failure 500 {object} ErrorResponse
// @Router /shipments/{id}/history [get]
func (h *ShipmentHandler) History(c *fiber.Ctx) error {
	entries, err := h.service.History(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "failed to load history")
	}
	return c.JSON(entries)
}

// respondError maps structured application errors to HTTP status codes.
func respondError(c *fiber.Ctx, err error, logMsg string) error {
	switch {
	case apperr.IsKind(err, apperr.KindValidation):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Message: err.Error(), RayID: rayID(c)})
	case apperr.IsKind(err, apperr.KindNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Message: err.Error(), RayID: rayID(c)})
	default:
		logger.Get().Error(logMsg, zap.Error(err), zap.String("ray_id", rayID(c)))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Message: "internal server error", RayID: rayID(c)})
	}
}

// rayID extracts the request id set by the requestid middleware.
func rayID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
