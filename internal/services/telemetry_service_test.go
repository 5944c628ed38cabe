package services_test

import (
	"sync"
	"testing"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tracksecure/telemetry-bridge/internal/cache"
	"github.com/tracksecure/telemetry-bridge/internal/mocks"
	"github.com/tracksecure/telemetry-bridge/internal/models"
	"github.com/tracksecure/telemetry-bridge/internal/services"
)

type recordingSink struct {
	mu       sync.Mutex
	readings []models.Reading
}

func (r *recordingSink) Broadcast(reading models.Reading) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readings = append(r.readings, reading)
}

func (r *recordingSink) all() []models.Reading {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Reading(nil), r.readings...)
}

type serviceFixture struct {
	service    *services.TelemetryService
	mqttClient *mocks.MockMQTTClient
	cache      *cache.SnapshotCache
	sink       *recordingSink
	handlers   map[string]MQTT.MessageHandler
}

func newFixture(t *testing.T, gpsTopic string) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		mqttClient: new(mocks.MockMQTTClient),
		cache:      cache.NewSnapshotCache(),
		sink:       &recordingSink{},
		handlers:   make(map[string]MQTT.MessageHandler),
	}

	f.mqttClient.On("Subscribe", mock.Anything, byte(1), mock.Anything).
		Return(mocks.NewCompletedToken(nil)).
		Run(func(args mock.Arguments) {
			f.handlers[args.String(0)] = args.Get(2).(MQTT.MessageHandler)
		})
	f.mqttClient.On("Unsubscribe", mock.Anything).Return(mocks.NewCompletedToken(nil))

	f.service = services.NewTelemetryService(
		"sensors/data",
		gpsTopic,
		1,
		f.mqttClient,
		f.cache,
		f.sink,
		zerolog.Nop(),
	)
	return f
}

// TestTelemetryService_StartStop checks the start/stop guard behavior.
func TestTelemetryService_StartStop(t *testing.T) {
	f := newFixture(t, "")

	require.NoError(t, f.service.Start())

	err := f.service.Start()
	assert.Error(t, err)
	assert.Equal(t, "telemetry service is already running", err.Error())

	require.NoError(t, f.service.Stop())

	err = f.service.Stop()
	assert.Error(t, err)
	assert.Equal(t, "telemetry service is not running", err.Error())
}

// TestTelemetryService_IngestsReading checks the happy path: decode, cache
// replacement, broadcast.
func TestTelemetryService_IngestsReading(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.service.Start())

	payload := []byte(`{
		"dhtData": {"temperature": 22.5, "humidity": 60.0, "timestamp": "2026-08-01T12:00:00Z"},
		"gpsData": {"longitude": -6.84, "latitude": 34.02, "satellites": 7, "timestamp": "2026-08-01T12:00:01Z"},
		"packageId": "PKG-1"
	}`)
	f.handlers["sensors/data"](nil, mocks.NewMockMessage("sensors/data", payload))

	latest, ok := f.cache.Latest()
	require.True(t, ok)
	assert.Equal(t, 22.5, latest.DHT.Temperature)
	assert.Equal(t, "PKG-1", latest.PackageID)

	readings := f.sink.all()
	require.Len(t, readings, 1)
	assert.Equal(t, latest, readings[0])
}

// TestTelemetryService_DropsBadPayload checks that a decode failure leaves
// the cache untouched and broadcasts nothing.
func TestTelemetryService_DropsBadPayload(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.service.Start())

	good := []byte(`{"dhtData": {"temperature": 20.0, "humidity": 50.0}, "gpsData": {"latitude": 1, "longitude": 1, "satellites": 3}, "packageId": "PKG-1"}`)
	f.handlers["sensors/data"](nil, mocks.NewMockMessage("sensors/data", good))

	f.handlers["sensors/data"](nil, mocks.NewMockMessage("sensors/data", []byte("not json")))
	f.handlers["sensors/data"](nil, mocks.NewMockMessage("sensors/data", []byte(`{"gpsData": {"latitude": 400}}`)))

	latest, ok := f.cache.Latest()
	require.True(t, ok)
	assert.Equal(t, 20.0, latest.DHT.Temperature)
	assert.Len(t, f.sink.all(), 1)
}

// TestTelemetryService_LastWriteWins checks arrival-order overwrite for a
// sequence of ingestion events.
func TestTelemetryService_LastWriteWins(t *testing.T) {
	f := newFixture(t, "")
	require.NoError(t, f.service.Start())

	f.handlers["sensors/data"](nil, mocks.NewMockMessage("sensors/data",
		[]byte(`{"dhtData": {"temperature": 10.0, "humidity": 50.0}, "gpsData": {"latitude": 1, "longitude": 1, "satellites": 3}}`)))
	f.handlers["sensors/data"](nil, mocks.NewMockMessage("sensors/data",
		[]byte(`{"dhtData": {"temperature": 11.0, "humidity": 51.0}, "gpsData": {"latitude": 1, "longitude": 1, "satellites": 3}}`)))

	latest, ok := f.cache.Latest()
	require.True(t, ok)
	assert.Equal(t, 11.0, latest.DHT.Temperature)
	assert.Len(t, f.sink.all(), 2)
}

// TestTelemetryService_IngestsNMEASentence checks the raw-GPS path: a GGA
// sentence becomes a reading keyed by the topic suffix, merged with the
// device's last DHT values.
func TestTelemetryService_IngestsNMEASentence(t *testing.T) {
	f := newFixture(t, "sensors/gps/+")
	require.NoError(t, f.service.Start())

	// Seed DHT values for the device first.
	f.handlers["sensors/data"](nil, mocks.NewMockMessage("sensors/data",
		[]byte(`{"dhtData": {"temperature": 19.5, "humidity": 44.0}, "gpsData": {"latitude": 0, "longitude": 0, "satellites": 0}, "packageId": "PKG-9"}`)))

	sentence := "$GPGGA,123519,4807.038,N,01131.000,E,1,08,0.9,545.4,M,46.9,M,,*47"
	f.handlers["sensors/gps/+"](nil, mocks.NewMockMessage("sensors/gps/PKG-9", []byte(sentence)))

	latest, ok := f.cache.LatestFor("PKG-9")
	require.True(t, ok)
	assert.Equal(t, 19.5, latest.DHT.Temperature, "DHT values carried over from the last reading")
	assert.Equal(t, 8, latest.GPS.Satellites)
	assert.InDelta(t, 48.1173, latest.GPS.Latitude, 0.001)
	assert.InDelta(t, 11.5167, latest.GPS.Longitude, 0.001)
	assert.Len(t, f.sink.all(), 2)
}

// TestTelemetryService_DropsBadNMEASentence checks the drop policy on the
// raw-GPS path.
func TestTelemetryService_DropsBadNMEASentence(t *testing.T) {
	f := newFixture(t, "sensors/gps/+")
	require.NoError(t, f.service.Start())

	f.handlers["sensors/gps/+"](nil, mocks.NewMockMessage("sensors/gps/PKG-9", []byte("garbage")))

	_, ok := f.cache.Latest()
	assert.False(t, ok)
	assert.Empty(t, f.sink.all())
}
