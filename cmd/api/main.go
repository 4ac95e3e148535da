package main

import (
	"log"
	"time"

	"logistics-console/internal/core/cache"
	"logistics-console/internal/core/config"
	"logistics-console/internal/core/database"
	"logistics-console/internal/core/logger"
	"logistics-console/internal/core/server"
	alertadapter "logistics-console/internal/features/alerts/adapters"
	alertdomain "logistics-console/internal/features/alerts/domain"
	alerthandler "logistics-console/internal/features/alerts/handler"
	alertservice "logistics-console/internal/features/alerts/service"
	exceptionadapter "logistics-console/internal/features/exceptions/adapters"
	exceptiondomain "logistics-console/internal/features/exceptions/domain"
	exceptionhandler "logistics-console/internal/features/exceptions/handler"
	exceptionservice "logistics-console/internal/features/exceptions/service"
	shipmentadapter "logistics-console/internal/features/shipments/adapters"
	shipmentdomain "logistics-console/internal/features/shipments/domain"
	shipmenthandler "logistics-console/internal/features/shipments/handler"
	shipmentservice "logistics-console/internal/features/shipments/service"
	trackingadapter "logistics-console/internal/features/tracking/adapters"
	trackinghandler "logistics-console/internal/features/tracking/handler"
	trackingservice "logistics-console/internal/features/tracking/service"
	tripadapter "logistics-console/internal/features/trips/adapters"
	tripdomain "logistics-console/internal/features/trips/domain"
	triphandler "logistics-console/internal/features/trips/handler"
	tripservice "logistics-console/internal/features/trips/service"

	"go.uber.org/zap"
)

// @title Logistics Operations Console API
// @version 1.0
// @description Trip and shipment lifecycle engine: status transitions, exceptions, telemetry alerts and trail analysis.
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	db, err := database.Connect(cfg.Database.DSN)
	if err != nil {
		l.Fatal("MySQL connection failed", zap.Error(err))
	}
	if err := database.Migrate(db,
		&shipmentdomain.Shipment{},
		&shipmentdomain.StatusHistoryEntry{},
		&tripdomain.Trip{},
		&tripdomain.ShipmentMapping{},
		&exceptiondomain.ShipmentException{},
		&alertdomain.TripAlert{},
	); err != nil {
		l.Fatal("Migrations failed", zap.Error(err))
	}
	l.Info("MySQL connection verified")

	redisClient, err := cache.Connect(cfg.Redis.URL)
	if err != nil {
		l.Fatal("Redis connection failed", zap.Error(err))
	}
	l.Info("Redis connection verified")

	// Repositories
	shipmentRepo := shipmentadapter.NewGormShipmentRepository(db)
	historyRepo := shipmentadapter.NewGormHistoryRepository(db)
	tripRepo := tripadapter.NewGormTripRepository(db)
	exceptionRepo := exceptionadapter.NewGormExceptionRepository(db)
	alertRepo := alertadapter.NewGormAlertRepository(db)
	pointRepo := trackingadapter.NewRedisPointRepository(redisClient)

	// Services
	statusMachine := shipmentservice.NewStatusMachine(shipmentRepo, historyRepo)
	capacityValidator := tripservice.NewCapacityValidator(tripRepo)
	exceptionLifecycle := exceptionservice.NewLifecycle(exceptionRepo, shipmentRepo)
	exceptionDetectors := exceptionservice.NewDetectors(exceptionLifecycle, exceptionRepo, shipmentRepo, tripRepo, capacityValidator,
		time.Duration(cfg.Detection.VehicleArrivalGraceMinutes)*time.Minute,
		cfg.Detection.DelayPercent,
	)

	stoppageThreshold := time.Duration(cfg.Detection.StoppageMinutes) * time.Minute
	trail := trackingservice.NewTrail(pointRepo, logger.With(zap.String("component", "tracking")),
		cfg.Detection.ClusterProximityMeters, stoppageThreshold)
	detection := alertservice.NewDetection(alertRepo, tripRepo, pointRepo,
		logger.With(zap.String("component", "alert_detection")),
		cfg.Detection.RouteDeviationMeters,
		stoppageThreshold,
		time.Duration(cfg.Detection.ExpectedPingIntervalSeconds)*time.Second,
		cfg.Detection.MissedPingIntervals,
		cfg.Detection.DelayPercent,
	)
	alertOperator := alertservice.NewOperator(alertRepo, tripRepo, logger.With(zap.String("component", "alert_operator")))

	// Handlers
	shipmentHdl := shipmenthandler.NewShipmentHandler(statusMachine)
	exceptionHdl := exceptionhandler.NewExceptionHandler(exceptionLifecycle, exceptionDetectors)
	tripHdl := triphandler.NewTripHandler(capacityValidator)
	trackingHdl := trackinghandler.NewTrackingHandler(trail, detection)
	alertHdl := alerthandler.NewAlertHandler(alertOperator, detection)

	srv := server.New(cfg)

	// Register Routes
	srv.App.Post("/shipments/:id/transition", shipmentHdl.Transition)
	srv.App.Get("/shipments/:id/history", shipmentHdl.History)
	srv.App.Post("/shipments/:id/exceptions", exceptionHdl.Log)
	srv.App.Get("/shipments/:id/exceptions", exceptionHdl.ListByShipment)
	srv.App.Post("/exceptions/:id/status", exceptionHdl.UpdateStatus)
	srv.App.Post("/shipments/:id/exception-sweep", exceptionHdl.Sweep)
	srv.App.Post("/trips/:id/pings", trackingHdl.IngestPings)
	srv.App.Get("/trips/:id/analysis", trackingHdl.Analysis)
	srv.App.Get("/trips/:id/alerts", alertHdl.ListByTrip)
	srv.App.Post("/alerts/:id/status", alertHdl.UpdateStatus)
	srv.App.Post("/trips/:id/consent-revoked", alertHdl.ConsentRevoked)
	srv.App.Post("/trips/:id/delay-check", alertHdl.CheckDelay)
	srv.App.Post("/trips/:id/capacity-check", tripHdl.CheckCapacity)

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}
