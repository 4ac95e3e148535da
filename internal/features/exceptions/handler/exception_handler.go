package handler

import (
	"time"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/core/logger"
	"logistics-console/internal/features/exceptions/domain"
	"logistics-console/internal/features/exceptions/ports"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ExceptionHandler handles HTTP requests for shipment exceptions.
type ExceptionHandler struct {
	service   ports.ExceptionService
	detectors ports.DetectorService
}

// NewExceptionHandler creates a new ExceptionHandler.
func NewExceptionHandler(service ports.ExceptionService, detectors ports.DetectorService) *ExceptionHandler {
	return &ExceptionHandler{service: service, detectors: detectors}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// LogExceptionRequest represents the request body for logging an exception.
type LogExceptionRequest struct {
	Type        domain.ExceptionType   `json:"type"`
	Description string                 `json:"description"`
	Severity    domain.Severity        `json:"severity,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// UpdateStatusRequest represents the request body for an exception status change.
type UpdateStatusRequest struct {
	NewStatus  domain.ExceptionStatus `json:"new_status"`
	Notes      string                 `json:"notes,omitempty"`
	EscalateTo string                 `json:"escalate_to,omitempty"`
}

// Log godoc
// @Summary Log an exception against a shipment
// @Description Records a new open exception; the type's default severity applies unless overridden
// @Tags exceptions
// @Accept json
// @Produce json
// @Param id path string true "Shipment ID"
// @Param exception body LogExceptionRequest true "Exception details"
// @Success 201 {object} domain.ShipmentException
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /shipments/{id}/exceptions [post]
func (h *ExceptionHandler) Log(c *fiber.Ctx) error {
	var req LogExceptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Message: "invalid request body", RayID: rayID(c)})
	}

	exception, err := h.service.Log(c.Context(), c.Params("id"), ports.LogRequest{
		Type:        req.Type,
		Description: req.Description,
		Severity:    req.Severity,
		Metadata:    req.Metadata,
	})
	if err != nil {
		return respondError(c, err, "failed to log exception")
	}

	return c.Status(fiber.StatusCreated).JSON(exception)
}

// UpdateStatus godoc
// @Summary Transition an exception through its lifecycle
// @Description Moves an exception to acknowledged, escalated or resolved, stamping the matching timestamp
// @Tags exceptions
// @Accept json
// @Produce json
// @Param id path string true "Exception ID"
// @Param update body UpdateStatusRequest true "Status change"
// @Success 200 {object} domain.ShipmentException
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /exceptions/{id}/status [post]
func (h *ExceptionHandler) UpdateStatus(c *fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Message: "invalid request body", RayID: rayID(c)})
	}

	exception, err := h.service.UpdateStatus(c.Context(), c.Params("id"), ports.StatusUpdateRequest{
		NewStatus:  req.NewStatus,
		Notes:      req.Notes,
		EscalateTo: req.EscalateTo,
	})
	if err != nil {
		return respondError(c, err, "failed to update exception status")
	}

	return c.JSON(exception)
}

// ListByShipment godoc
// @Summary List the exceptions of a shipment
// @Description Returns all exceptions of a shipment, newest first
// @Tags exceptions
// @Produce json
// @Param id path string true "Shipment ID"
// @Success 200 {array} domain.ShipmentException
// @Failure 500 {object} ErrorResponse
// @Router /shipments/{id}/exceptions [get]
func (h *ExceptionHandler) ListByShipment(c *fiber.Ctx) error {
	exceptions, err := h.service.ListByShipment(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "failed to list exceptions")
	}
	return c.JSON(exceptions)
}

// SweepRequest scopes a detector run to the trip the shipment is being
// handled on. CurrentETA feeds the delay detector when the caller has a
// freshly computed ETA; the delay check is skipped otherwise.
type SweepRequest struct {
	TripID     string     `json:"trip_id"`
	CurrentETA *time.Time `json:"current_eta,omitempty"`
}

// Sweep godoc
// @Summary Run the business exception detectors for a shipment
// @Description Checks duplicate mapping, vehicle arrival, capacity and delay; returns the exceptions raised
// @Tags exceptions
// @Accept json
// @Produce json
// @Param id path string true "Shipment ID"
// @Param scope body SweepRequest true "Trip scope"
// @Success 200 {array} domain.ShipmentException
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /shipments/{id}/exception-sweep [post]
func (h *ExceptionHandler) Sweep(c *fiber.Ctx) error {
	var req SweepRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Message: "invalid request body", RayID: rayID(c)})
	}
	if req.TripID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Message: "trip_id is required", RayID: rayID(c)})
	}

	shipmentID := c.Params("id")
	raised := make([]domain.ShipmentException, 0, 4)

	checks := []func() (*domain.ShipmentException, error){
		func() (*domain.ShipmentException, error) {
			return h.detectors.DetectDuplicateMapping(c.Context(), shipmentID)
		},
		func() (*domain.ShipmentException, error) {
			return h.detectors.DetectVehicleNotArrived(c.Context(), shipmentID, req.TripID)
		},
		func() (*domain.ShipmentException, error) {
			return h.detectors.DetectCapacityExceeded(c.Context(), shipmentID, req.TripID)
		},
	}
	if req.CurrentETA != nil {
		checks = append(checks, func() (*domain.ShipmentException, error) {
			return h.detectors.DetectDelay(c.Context(), shipmentID, req.TripID, *req.CurrentETA)
		})
	}

	for _, check := range checks {
		exception, err := check()
		if err != nil {
			return respondError(c, err, "exception detector failed")
		}
		if exception != nil {
			raised = append(raised, *exception)
		}
	}

	return c.JSON(raised)
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
