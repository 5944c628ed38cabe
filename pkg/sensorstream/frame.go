package sensorstream

import (
	"bytes"
	"encoding/json"
	"time"
)

// DisplayReading is the flattened shape handed to UI code. Missing numeric
// fields arrive as zero and missing timestamps as the current time.
type DisplayReading struct {
	Temperature  float64
	Humidity     float64
	Latitude     float64
	Longitude    float64
	Satellites   int
	DHTTimestamp time.Time
	GPSTimestamp time.Time
	PackageID    string
}

type wireDHT struct {
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	Timestamp   *time.Time `json:"timestamp"`
}

type wireGPS struct {
	Longitude  *float64   `json:"longitude"`
	Latitude   *float64   `json:"latitude"`
	Satellites *int       `json:"satellites"`
	Timestamp  *time.Time `json:"timestamp"`
}

type wireFrame struct {
	DHT       *wireDHT `json:"dhtData"`
	GPS       *wireGPS `json:"gpsData"`
	PackageID string   `json:"packageId"`
}

// decodeFrame parses one pushed frame. It reports false for empty or
// unparseable frames, for frames carrying no sensor data at all, and for
// frames addressed to a package other than the selected one. An empty
// selected identifier accepts every frame.
func decodeFrame(data []byte, selected string, now func() time.Time) (DisplayReading, bool) {
	if len(bytes.TrimSpace(data)) == 0 {
		return DisplayReading{}, false
	}

	var frame wireFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return DisplayReading{}, false
	}
	if frame.DHT == nil && frame.GPS == nil {
		return DisplayReading{}, false
	}
	if selected != "" && frame.PackageID != "" && frame.PackageID != selected {
		return DisplayReading{}, false
	}

	ts := now()
	reading := DisplayReading{
		PackageID:    frame.PackageID,
		DHTTimestamp: ts,
		GPSTimestamp: ts,
	}

	if frame.DHT != nil {
		if frame.DHT.Temperature != nil {
			reading.Temperature = *frame.DHT.Temperature
		}
		if frame.DHT.Humidity != nil {
			reading.Humidity = *frame.DHT.Humidity
		}
		if frame.DHT.Timestamp != nil {
			reading.DHTTimestamp = *frame.DHT.Timestamp
		}
	}
	if frame.GPS != nil {
		if frame.GPS.Latitude != nil {
			reading.Latitude = *frame.GPS.Latitude
		}
		if frame.GPS.Longitude != nil {
			reading.Longitude = *frame.GPS.Longitude
		}
		if frame.GPS.Satellites != nil {
			reading.Satellites = *frame.GPS.Satellites
		}
		if frame.GPS.Timestamp != nil {
			reading.GPSTimestamp = *frame.GPS.Timestamp
		}
	}

	return reading, true
}
