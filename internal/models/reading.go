package models

import (
	"errors"
	"math"
	"time"
)

// DHTData holds a temperature/humidity sample from the DHT sensor.
type DHTData struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

// GPSData holds a GPS fix.
type GPSData struct {
	Longitude  float64   `json:"longitude"`
	Latitude   float64   `json:"latitude"`
	Satellites int       `json:"satellites"`
	Timestamp  time.Time `json:"timestamp"`
}

// Reading is one complete telemetry record as carried on the wire.
// Readings are plain values and are never mutated after construction;
// successive readings replace each other wholesale.
type Reading struct {
	DHT       DHTData `json:"dhtData"`
	GPS       GPSData `json:"gpsData"`
	PackageID string  `json:"packageId,omitempty"`
}

// NewReading builds a validated Reading. Zero timestamps are defaulted to
// now so that a reading always carries usable instants.
func NewReading(dht DHTData, gps GPSData, packageID string) (Reading, error) {
	r := Reading{DHT: dht, GPS: gps, PackageID: packageID}
	now := time.Now()
	if r.DHT.Timestamp.IsZero() {
		r.DHT.Timestamp = now
	}
	if r.GPS.Timestamp.IsZero() {
		r.GPS.Timestamp = now
	}
	if err := r.Validate(); err != nil {
		return Reading{}, err
	}
	return r, nil
}

// Validate checks the field-level invariants of a reading.
func (r Reading) Validate() error {
	for _, v := range []float64{r.DHT.Temperature, r.DHT.Humidity, r.GPS.Latitude, r.GPS.Longitude} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New("reading contains a non-finite value")
		}
	}
	if r.GPS.Latitude < -90 || r.GPS.Latitude > 90 {
		return errors.New("latitude out of range")
	}
	if r.GPS.Longitude < -180 || r.GPS.Longitude > 180 {
		return errors.New("longitude out of range")
	}
	if r.GPS.Satellites < 0 {
		return errors.New("satellite count cannot be negative")
	}
	return nil
}
