package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/core/logger"
	"logistics-console/internal/features/tracking/domain"
	"logistics-console/internal/features/tracking/ports"
)

// Sweeper runs the alert detection checks for a trip after new pings land.
type Sweeper interface {
	Sweep(ctx context.Context, tripID string)
}

// TrackingHandler handles HTTP requests for ping ingestion and trail analysis.
type TrackingHandler struct {
	service ports.TrackingService
	sweeper Sweeper
}

// NewTrackingHandler creates a new TrackingHandler. sweeper may be nil when
// detection is not wired (e.g. in tests).
func NewTrackingHandler(service ports.TrackingService, sweeper Sweeper) *TrackingHandler {
	return &TrackingHandler{service: service, sweeper: sweeper}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// PingRequest is one tracking point in an ingest batch.
type PingRequest struct {
	SequenceNumber int64     `json:"sequence_number"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	Timestamp      time.Time `json:"timestamp"`
	SpeedKph       *float64  `json:"speed_kph,omitempty"`
	Address        string    `json:"address,omitempty"`
}

// IngestResponse reports how many pings were accepted.
type IngestResponse struct {
	Accepted int `json:"accepted"`
}

// IngestPings godoc
// @Summary Ingest a batch of tracking pings for a trip
// @Description Stores the pings and triggers the alert detection sweep for the trip
// @Tags tracking
// @Accept json
// @Produce json
// @Param id path string true "Trip ID"
// @Param pings body []PingRequest true "Tracking pings"
// @Success 202 {object} IngestResponse
// @Failure 400 {object} ErrorResponse
// @Router /trips/{id}/pings [post]
func (h *TrackingHandler) IngestPings(c *fiber.Ctx) error {
	var req []PingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "invalid request body",
			RayID:   rayID(c),
		})
	}

	tripID := c.Params("id")
	points := make([]domain.TrackingPoint, 0, len(req))
	for _, ping := range req {
		points = append(points, domain.TrackingPoint{
			SequenceNumber: ping.SequenceNumber,
			Latitude:       ping.Latitude,
			Longitude:      ping.Longitude,
			Timestamp:      ping.Timestamp,
			SpeedKph:       ping.SpeedKph,
			Address:        ping.Address,
		})
	}

	accepted, err := h.service.IngestBatch(c.Context(), tripID, points)
	if err != nil {
		return respondError(c, err, "failed to ingest pings")
	}

	if h.sweeper != nil && accepted > 0 {
		h.sweeper.Sweep(c.Context(), tripID)
	}

	return c.Status(fiber.StatusAccepted).JSON(IngestResponse{Accepted: accepted})
}

// Analysis godoc
// @Summary Analyze the tracking trail of a trip
// @Description Clusters the trip's points into stoppages, dwells and moving points
// @Tags tracking
// @Produce json
// @Param id path string true "Trip ID"
// @Success 200 {object} domain.ClusterResult
// @Failure 500 {object} ErrorResponse
// @Router /trips/{id}/analysis [get]
func (h *TrackingHandler) Analysis(c *fiber.Ctx) error {
	result, err := h.service.Analyze(c.Context(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "failed to analyze trail")
	}
	return c.JSON(result)
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
