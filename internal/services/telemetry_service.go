package services

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/tracksecure/telemetry-bridge/internal/cache"
	"github.com/tracksecure/telemetry-bridge/internal/models"
	"github.com/tracksecure/telemetry-bridge/pkg/mqtt"
)

// Broadcaster delivers one reading to every registered push session.
type Broadcaster interface {
	Broadcast(reading models.Reading)
}

// TelemetryService subscribes to the upstream sensor topics and feeds the
// snapshot cache and the push fan-out. Decode failures are logged and the
// message dropped; the cache keeps its previous value. No ordering or
// deduplication is enforced: upstream messages overwrite in arrival order.
type TelemetryService struct {
	// Configuration fields
	topic    string
	gpsTopic string
	qos      int

	// Dependencies
	mqttClient mqtt.MQTTClient
	cache      *cache.SnapshotCache
	sink       Broadcaster
	logger     zerolog.Logger

	// Internal state management
	running bool
}

// NewTelemetryService creates a new TelemetryService instance with the provided configuration.
func NewTelemetryService(topic, gpsTopic string, qos int, mqttClient mqtt.MQTTClient,
	snapshots *cache.SnapshotCache, sink Broadcaster, logger zerolog.Logger) *TelemetryService {
	return &TelemetryService{
		topic:      topic,
		gpsTopic:   gpsTopic,
		qos:        qos,
		mqttClient: mqttClient,
		cache:      snapshots,
		sink:       sink,
		logger:     logger,
		running:    false,
	}
}

// Start subscribes to the configured topics.
func (t *TelemetryService) Start() error {
	if t.running {
		t.logger.Warn().Msg("TelemetryService is already running")
		return errors.New("telemetry service is already running")
	}

	token := t.mqttClient.Subscribe(t.topic, byte(t.qos), t.handleSensorMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		t.logger.Error().Err(err).Str("topic", t.topic).Msg("Failed to subscribe to sensor topic")
		return err
	}

	if t.gpsTopic != "" {
		token = t.mqttClient.Subscribe(t.gpsTopic, byte(t.qos), t.handleGPSSentence)
		token.Wait()
		if err := token.Error(); err != nil {
			t.logger.Error().Err(err).Str("topic", t.gpsTopic).Msg("Failed to subscribe to GPS topic")
			t.mqttClient.Unsubscribe(t.topic).Wait()
			return err
		}
	}

	t.running = true
	t.logger.Info().
		Str("topic", t.topic).
		Str("gps_topic", t.gpsTopic).
		Int("qos", t.qos).
		Msg("TelemetryService started")
	return nil
}

// Stop unsubscribes from the upstream topics.
func (t *TelemetryService) Stop() error {
	if !t.running {
		t.logger.Warn().Msg("TelemetryService is not running")
		return errors.New("telemetry service is not running")
	}

	topics := []string{t.topic}
	if t.gpsTopic != "" {
		topics = append(topics, t.gpsTopic)
	}

	token := t.mqttClient.Unsubscribe(topics...)
	token.Wait()
	if err := token.Error(); err != nil {
		t.logger.Error().Err(err).Msg("Failed to unsubscribe from sensor topics")
		return err
	}

	t.running = false
	t.logger.Info().Msg("TelemetryService stopped")
	return nil
}

// handleSensorMessage decodes a JSON sensor payload and, on success,
// replaces the cached snapshot and broadcasts the new reading.
func (t *TelemetryService) handleSensorMessage(_ MQTT.Client, msg MQTT.Message) {
	var decoded models.Reading
	if err := json.Unmarshal(msg.Payload(), &decoded); err != nil {
		t.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Dropping undecodable sensor payload")
		return
	}

	reading, err := models.NewReading(decoded.DHT, decoded.GPS, decoded.PackageID)
	if err != nil {
		t.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Dropping invalid sensor payload")
		return
	}

	t.cache.Put(reading)
	t.sink.Broadcast(reading)

	t.logger.Debug().
		Str("package_id", reading.PackageID).
		Float64("temperature", reading.DHT.Temperature).
		Msg("Sensor reading ingested")
}

// handleGPSSentence ingests a raw NMEA GGA sentence published by trackers
// that do not wrap their fix in JSON. The fix is merged with the device's
// last known DHT values, matching the same drop-on-failure policy as the
// JSON path.
func (t *TelemetryService) handleGPSSentence(_ MQTT.Client, msg MQTT.Message) {
	line := strings.TrimSpace(string(msg.Payload()))
	sentence, err := nmea.Parse(line)
	if err != nil {
		t.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Dropping unparseable NMEA sentence")
		return
	}

	gga, ok := sentence.(nmea.GGA)
	if !ok {
		t.logger.Debug().Str("type", sentence.DataType()).Msg("Ignoring non-GGA NMEA sentence")
		return
	}

	packageID := topicSuffix(msg.Topic())

	var dht models.DHTData
	if last, ok := t.cache.LatestFor(packageID); ok {
		dht = last.DHT
	}

	gps := models.GPSData{
		Latitude:   gga.Latitude,
		Longitude:  gga.Longitude,
		Satellites: int(gga.NumSatellites),
		Timestamp:  time.Now(),
	}

	reading, err := models.NewReading(dht, gps, packageID)
	if err != nil {
		t.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("Dropping invalid GPS fix")
		return
	}

	t.cache.Put(reading)
	t.sink.Broadcast(reading)
}

// topicSuffix extracts the trailing topic segment, used as the package
// identifier on the per-device GPS topics.
func topicSuffix(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
