package utils

import (
	"time"

	"github.com/tracksecure/telemetry-bridge/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	MQTT struct {
		Broker        string `yaml:"broker"`         // MQTT broker address
		ClientID      string `yaml:"client_id"`      // MQTT client ID
		CACertificate string `yaml:"ca_certificate"` // Path to the CA certificate, empty for plain TCP
	} `yaml:"mqtt"`

	HTTP struct {
		Address string `yaml:"address"` // Listen address for the REST and WebSocket surface
	} `yaml:"http"`

	Services struct {
		Telemetry struct {
			Enabled  bool   `yaml:"enabled"`   // Enable/disable telemetry ingestion
			Topic    string `yaml:"topic"`     // Upstream topic carrying JSON sensor payloads
			GPSTopic string `yaml:"gps_topic"` // Optional topic carrying raw NMEA sentences
			QOS      int    `yaml:"qos"`       // MQTT QoS level for telemetry subscriptions
		} `yaml:"telemetry"`

		Stats struct {
			Enabled  bool          `yaml:"enabled"`  // Enable/disable the stats service
			Interval time.Duration `yaml:"interval"` // Interval between stats log lines (in seconds)
		} `yaml:"stats"`
	} `yaml:"services"`

	Hub struct {
		Workers   int `yaml:"workers"`    // Worker pool size for priming sends
		QueueSize int `yaml:"queue_size"` // Worker pool queue capacity
	} `yaml:"hub"`
}

// LoadConfig loads the YAML configuration from the specified file.
// It returns a pointer to the Config struct and an error if loading fails.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config
	err := fileClient.ReadYamlFile(filename, &config)
	if err != nil {
		return nil, err
	}

	return &config, nil
}
