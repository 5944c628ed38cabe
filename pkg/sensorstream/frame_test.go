package sensorstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frameNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time {
	return frameNow
}

func TestDecodeFrame_Full(t *testing.T) {
	payload := []byte(`{
		"dhtData": {"temperature": 22.5, "humidity": 60.0, "timestamp": "2026-08-01T11:59:00Z"},
		"gpsData": {"longitude": -6.84, "latitude": 34.02, "satellites": 7, "timestamp": "2026-08-01T11:59:30Z"},
		"packageId": "PKG-1"
	}`)

	reading, ok := decodeFrame(payload, "PKG-1", fixedNow)
	require.True(t, ok)
	assert.Equal(t, 22.5, reading.Temperature)
	assert.Equal(t, 60.0, reading.Humidity)
	assert.Equal(t, 34.02, reading.Latitude)
	assert.Equal(t, -6.84, reading.Longitude)
	assert.Equal(t, 7, reading.Satellites)
	assert.Equal(t, "PKG-1", reading.PackageID)
	assert.Equal(t, time.Date(2026, 8, 1, 11, 59, 0, 0, time.UTC), reading.DHTTimestamp)
}

// TestDecodeFrame_DropsGarbage checks the silent-drop policy for empty and
// unparseable frames.
func TestDecodeFrame_DropsGarbage(t *testing.T) {
	for _, payload := range [][]byte{
		nil,
		[]byte(""),
		[]byte("   "),
		[]byte("not json"),
		[]byte(`{"dhtData": {"timestamp": "yesterday"}}`),
		[]byte(`{}`),
	} {
		_, ok := decodeFrame(payload, "", fixedNow)
		assert.False(t, ok, "payload %q", payload)
	}
}

// TestDecodeFrame_DiscardsOtherPackage checks that a frame addressed to a
// different package is discarded without producing a reading.
func TestDecodeFrame_DiscardsOtherPackage(t *testing.T) {
	payload := []byte(`{"dhtData": {"temperature": 1.0}, "packageId": "PKG-2"}`)

	_, ok := decodeFrame(payload, "PKG-1", fixedNow)
	assert.False(t, ok)

	// A frame without an identifier is accepted for any selection.
	anonymous := []byte(`{"dhtData": {"temperature": 1.0}}`)
	reading, ok := decodeFrame(anonymous, "PKG-1", fixedNow)
	require.True(t, ok)
	assert.Equal(t, 1.0, reading.Temperature)
}

// TestDecodeFrame_SubstitutesMissingFields checks zero substitution for
// numerics and current-time substitution for timestamps.
func TestDecodeFrame_SubstitutesMissingFields(t *testing.T) {
	payload := []byte(`{"dhtData": {"temperature": 18.0}, "gpsData": {"latitude": 10.0}}`)

	reading, ok := decodeFrame(payload, "", fixedNow)
	require.True(t, ok)
	assert.Equal(t, 18.0, reading.Temperature)
	assert.Equal(t, 0.0, reading.Humidity)
	assert.Equal(t, 10.0, reading.Latitude)
	assert.Equal(t, 0.0, reading.Longitude)
	assert.Equal(t, 0, reading.Satellites)
	assert.Equal(t, frameNow, reading.DHTTimestamp)
	assert.Equal(t, frameNow, reading.GPSTimestamp)
}
