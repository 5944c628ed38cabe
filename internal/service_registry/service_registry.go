package service_registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tracksecure/telemetry-bridge/internal/api"
	"github.com/tracksecure/telemetry-bridge/internal/cache"
	"github.com/tracksecure/telemetry-bridge/internal/hub"
	"github.com/tracksecure/telemetry-bridge/internal/metrics"
	"github.com/tracksecure/telemetry-bridge/internal/registry"
	"github.com/tracksecure/telemetry-bridge/internal/services"
	"github.com/tracksecure/telemetry-bridge/internal/utils"
	"github.com/tracksecure/telemetry-bridge/pkg/mqtt"
)

// ServiceRegistry manages the lifecycle of the bridge's services.
type ServiceRegistry struct {
	services    map[string]registry.Service // Stores registered services
	serviceKeys []string                    // Maintains order of service registration
	mqttClient  mqtt.MQTTClient
	cache       *cache.SnapshotCache
	hub         *hub.Hub
	Logger      zerolog.Logger
}

// NewServiceRegistry initializes a new service registry with dependencies.
func NewServiceRegistry(mqttClient mqtt.MQTTClient, snapshots *cache.SnapshotCache, h *hub.Hub, logger zerolog.Logger) *ServiceRegistry {
	return &ServiceRegistry{
		services:   make(map[string]registry.Service),
		mqttClient: mqttClient,
		cache:      snapshots,
		hub:        h,
		Logger:     logger,
	}
}

// RegisterService adds a new service to the registry.
func (sr *ServiceRegistry) RegisterService(name string, svc registry.Service) {
	if _, exists := sr.services[name]; exists {
		sr.Logger.Warn().Msgf("Service %s is already registered", name)
		return
	}
	sr.services[name] = svc
	sr.serviceKeys = append(sr.serviceKeys, name)
	sr.Logger.Info().Msgf("Registered service: %s", name)
}

// StartServices initiates all registered services in order.
// If a service fails to start, it stops already started services.
func (sr *ServiceRegistry) StartServices() error {
	startedServices := []string{}

	for _, name := range sr.serviceKeys {
		svc := sr.services[name]
		sr.Logger.Info().Msgf("Starting service: %s", name)
		if err := svc.Start(); err != nil {
			sr.Logger.Error().Err(err).Msgf("Failed to start service: %s", name)

			// Stop already started services before returning
			sr.Logger.Warn().Msg("Stopping already started services due to startup failure...")
			for i := len(startedServices) - 1; i >= 0; i-- {
				_ = sr.services[startedServices[i]].Stop()
			}
			return err
		}
		startedServices = append(startedServices, name)
	}

	return nil
}

// StopServices stops all services in reverse order.
func (sr *ServiceRegistry) StopServices() error {
	var stopErrors []error
	for i := len(sr.serviceKeys) - 1; i >= 0; i-- {
		name := sr.serviceKeys[i]
		if err := sr.services[name].Stop(); err != nil {
			stopErrors = append(stopErrors, fmt.Errorf("failed to stop %s: %w", name, err))
		}
	}
	if len(stopErrors) > 0 {
		for _, e := range stopErrors {
			sr.Logger.Error().Err(e).Msg("Service stop failure")
		}
		return errors.Join(stopErrors...)
	}
	return nil
}

// RegisterServices initializes and registers enabled services based on configuration.
func (sr *ServiceRegistry) RegisterServices(config *utils.Config) error {
	var stats *metrics.StatsService
	if config.Services.Stats.Enabled {
		stats = metrics.NewStatsService(time.Duration(config.Services.Stats.Interval)*time.Second, sr.hub, sr.Logger)
	}

	// Ordered service definitions with inline constructors
	servicesInOrder := []struct {
		name        string
		enabled     bool
		constructor func() (registry.Service, error)
	}{
		{
			name:    "telemetry",
			enabled: config.Services.Telemetry.Enabled,
			constructor: func() (registry.Service, error) {
				return services.NewTelemetryService(
					config.Services.Telemetry.Topic,
					config.Services.Telemetry.GPSTopic,
					config.Services.Telemetry.QOS,
					sr.mqttClient,
					sr.cache,
					sr.hub,
					sr.Logger,
				), nil
			},
		},
		{
			name:    "stats",
			enabled: config.Services.Stats.Enabled,
			constructor: func() (registry.Service, error) {
				return stats, nil
			},
		},
		{
			name:    "api",
			enabled: true,
			constructor: func() (registry.Service, error) {
				var statsSource api.StatsSource
				if stats != nil {
					statsSource = stats
				}
				return api.NewAPIService(
					config.HTTP.Address,
					sr.cache,
					sr.hub,
					statsSource,
					sr.Logger,
				), nil
			},
		},
	}

	// Register services in the predefined order
	registeredServices := []string{}
	for _, svc := range servicesInOrder {
		if svc.enabled {
			serviceInstance, err := svc.constructor()
			if err != nil {
				sr.Logger.Error().Err(err).Msgf("Failed to create %s service", svc.name)
				return err
			}
			sr.RegisterService(svc.name, serviceInstance)
			registeredServices = append(registeredServices, svc.name)
		}
	}

	sr.Logger.Info().Msgf("Registered services in order: %v", registeredServices)
	return nil
}
