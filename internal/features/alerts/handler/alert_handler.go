package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/core/logger"
	"logistics-console/internal/features/alerts/domain"
	"logistics-console/internal/features/alerts/ports"
)

// AlertHandler handles HTTP requests for trip alerts.
type AlertHandler struct {
	operator  ports.AlertService
	detection ports.DetectionService
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(operator ports.AlertService, detection ports.DetectionService) *AlertHandler {
	return &AlertHandler{operator: operator, detection: detection}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// StatusRequest is the body for an operator alert-status change.
type StatusRequest struct {
	NewStatus domain.AlertStatus `json:"new_status"`
	Notes     string             `json:"notes,omitempty"`
}

// DelayCheckRequest carries the externally computed current ETA.
type DelayCheckRequest struct {
	CurrentETA time.Time `json:"current_eta"`
}

// ListByTrip godoc
// @Summary List the alerts of a trip
// @Description Returns all alerts for the trip, newest first
// @Tags alerts
// @Produce json
// @Param id path string true "Trip ID"
// @Success 200 {array} domain.TripAlert
// @Failure 500 {object} ErrorResponse
// @Router /trips/{id}/alerts [get]
func (h *AlertHandler) ListByTrip(c *fiber.Ctx) error {
	alerts, err := h.operator.ListByTrip(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "failed to list alerts")
	}
	return c.JSON(alerts)
}

// UpdateStatus godoc
// @Summary Apply an operator status change to an alert
// @Description Acknowledge, resolve or dismiss an alert
// @Tags alerts
// @Accept json
// @Produce json
// @Param id path string true "Alert ID"
// @Param status body StatusRequest true "Status change"
// @Success 200 {object} domain.TripAlert
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /alerts/{id}/status [post]
func (h *AlertHandler) UpdateStatus(c *fiber.Ctx) error {
	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid request body",
			RayID:   rayID(c),
		})
	}

	alert, err := h.operator.UpdateStatus(c.Context(), c.Params("id"), ports.StatusUpdateRequest{
		NewStatus: req.NewStatus,
		Notes:     req.Notes,
	})
	if err != nil {
		return respondError(c, err, "failed to update alert status")
	}
	return c.JSON(alert)
}

// ConsentRevoked godoc
// @Summary Record a tracking consent revocation for a trip
// @Description Raises the critical consent alert and marks the trip untrackable
// @Tags alerts
// @Produce json
// @Param id path string true "Trip ID"
// @Success 200 {object} domain.TripAlert
// @Failure 404 {object} ErrorResponse
// @Router /trips/{id}/consent-revoked [post]
func (h *AlertHandler) ConsentRevoked(c *fiber.Ctx) error {
	alert, err := h.detection.ConsentRevoked(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "failed to record consent revocation")
	}
	if alert == nil {
		// already recorded; the webhook retried
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(alert)
}

// CheckDelay godoc
// @Summary Evaluate a trip against a freshly computed ETA
// @Description Raises or auto-resolves the trip's delay warning
// @Tags alerts
// @Accept json
// @Produce json
// @Param id path string true "Trip ID"
// @Param eta body DelayCheckRequest true "Current ETA"
// @Success 200 {object} domain.TripAlert
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /trips/{id}/delay-check [post]
func (h *AlertHandler) CheckDelay(c *fiber.Ctx) error {
	var req DelayCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid request body",
			RayID:   rayID(c),
		})
	}
	if req.CurrentETA.IsZero() {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "current_eta is required",
			RayID:   rayID(c),
		})
	}

	alert, err := h.detection.CheckDelay(c.Context(), c.Params("id"), req.CurrentETA)
	if err != nil {
		return respondError(c, err, "failed to evaluate delay")
	}
	if alert == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(alert)
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
