package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tracksecure/telemetry-bridge/internal/cache"
	"github.com/tracksecure/telemetry-bridge/internal/hub"
	"github.com/tracksecure/telemetry-bridge/internal/service_registry"
	"github.com/tracksecure/telemetry-bridge/internal/utils"
	"github.com/tracksecure/telemetry-bridge/pkg/file"
	"github.com/tracksecure/telemetry-bridge/pkg/mqtt"
)

func main() {
	// Set up structured logging with JSON output
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Initialize file operations handler
	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig("configs/config.yaml", fileClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Generate a unique MQTT Client ID by appending a UUID
	config.MQTT.ClientID = config.MQTT.ClientID + "-" + uuid.New().String()
	logger.Info().Str("client_id", config.MQTT.ClientID).Msg("Using MQTT Client ID")

	// Initialize the shared MQTT connection
	mqttClient := mqtt.NewMqttService(fileClient)
	if err := mqttClient.Initialize(config.MQTT.Broker, config.MQTT.ClientID, config.MQTT.CACertificate); err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
	}

	// Shared snapshot cache and push fan-out
	snapshots := cache.NewSnapshotCache()

	workers := config.Hub.Workers
	if workers <= 0 {
		workers = 4
	}
	queueSize := config.Hub.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	pool := utils.NewWorkerPool(workers, queueSize)

	pushHub := hub.NewHub(snapshots, pool, logger)

	// Create a new service registry to manage services
	serviceRegistry := service_registry.NewServiceRegistry(mqttClient, snapshots, pushHub, logger)

	// Register all services based on the configuration
	if err := serviceRegistry.RegisterServices(config); err != nil {
		logger.Fatal().Err(err).Msg("Failed to register services")
	}

	// Start all registered services in the registry
	if err := serviceRegistry.StartServices(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start services")
	}
	logger.Info().Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	logger.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		logger.Error().Err(err).Msg("Failed to stop some services")
	}
	pool.Shutdown()
	mqttClient.Disconnect(250)
}
