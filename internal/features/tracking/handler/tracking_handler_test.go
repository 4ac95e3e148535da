package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"logistics-console/internal/core/apperr"
	"logistics-console/internal/features/tracking/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockTrackingService is a mock implementation of ports.TrackingService.
type MockTrackingService struct {
	mock.Mock
}

func (m *MockTrackingService) IngestBatch(ctx context.Context, tripID string, points []domain.TrackingPoint) (int, error) {
	args := m.Called(ctx, tripID, points)
	return args.Int(0), args.Error(1)
}

func (m *MockTrackingService) Analyze(ctx context.Context, tripID string) (domain.ClusterResult, error) {
	args := m.Called(ctx, tripID)
	return args.Get(0).(domain.ClusterResult), args.Error(1)
}

// MockSweeper records which trips had a detection sweep triggered.
type MockSweeper struct {
	swept []string
}

func (m *MockSweeper) Sweep(_ context.Context, tripID string) {
	m.swept = append(m.swept, tripID)
}

func setupApp(service *MockTrackingService, sweeper Sweeper) *fiber.App {
	app := fiber.New()
	h := NewTrackingHandler(service, sweeper)
	app.Post("/trips/:id/pings", h.IngestPings)
	app.Get("/trips/:id/analysis", h.Analysis)
	return app
}

func TestTrackingHandler_IngestPings(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockTrackingService)
		sweeper := &MockSweeper{}
		app := setupApp(mockService, sweeper)

		mockService.On("IngestBatch", mock.Anything, "t1", mock.Anything).Return(2, nil).Once()

		body, _ := json.Marshal([]PingRequest{
			{SequenceNumber: 1, Latitude: 12.97, Longitude: 77.59, Timestamp: time.Now().UTC()},
			{SequenceNumber: 2, Latitude: 12.98, Longitude: 77.60, Timestamp: time.Now().UTC()},
		})
		req := httptest.NewRequest("POST", "/trips/t1/pings", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, []string{"t1"}, sweeper.swept)
		mockService.AssertExpectations(t)
	})

	t.Run("SweepSkippedWhenNothingAccepted", func(t *testing.T) {
		mockService := new(MockTrackingService)
		sweeper := &MockSweeper{}
		app := setupApp(mockService, sweeper)

		mockService.On("IngestBatch", mock.Anything, "t1", mock.Anything).Return(0, nil).Once()

		req := httptest.NewRequest("POST", "/trips/t1/pings", bytes.NewReader([]byte("[]")))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Empty(t, sweeper.swept)
	})

	t.Run("ValidationError", func(t *testing.T) {
		mockService := new(MockTrackingService)
		app := setupApp(mockService, nil)

		mockService.On("IngestBatch", mock.Anything, "t1", mock.Anything).
			Return(0, apperr.Validation("tracking point outside coordinate bounds")).Once()

		body, _ := json.Marshal([]PingRequest{{SequenceNumber: 1, Latitude: 91}})
		req := httptest.NewRequest("POST", "/trips/t1/pings", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		mockService := new(MockTrackingService)
		app := setupApp(mockService, nil)

		req := httptest.NewRequest("POST", "/trips/t1/pings", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestTrackingHandler_Analysis(t *testing.T) {
	mockService := new(MockTrackingService)
	app := setupApp(mockService, nil)

	result := domain.ClusterResult{
		Clusters: []domain.TrackingCluster{{IsStoppage: true}},
	}
	mockService.On("Analyze", mock.Anything, "t1").Return(result, nil).Once()

	resp, err := app.Test(httptest.NewRequest("GET", "/trips/t1/analysis", nil))

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got domain.ClusterResult
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Len(t, got.Clusters, 1)
	mockService.AssertExpectations(t)
}
