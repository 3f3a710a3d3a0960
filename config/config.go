package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the telemetry engine service.
type Config struct {
	DatabaseURL   string
	Port          int
	BearerToken   string
	DistanceMinCM float64
	DistanceMaxCM float64
	AlertPolicy   string

	MQTTBroker      string
	MQTTTopicPrefix string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		Port:            8080,
		DistanceMinCM:   7,
		DistanceMaxCM:   45,
		AlertPolicy:     "stacked",
		MQTTTopicPrefix: "binwatch",
		MQTTClientID:    "binwatch-engine",
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	}

	if minStr := os.Getenv("BIN_DISTANCE_MIN_CM"); minStr != "" {
		if min, err := strconv.ParseFloat(minStr, 64); err == nil && min >= 0 {
			cfg.DistanceMinCM = min
		} else {
			return cfg, fmt.Errorf("invalid BIN_DISTANCE_MIN_CM: %s", minStr)
		}
	}

	if maxStr := os.Getenv("BIN_DISTANCE_MAX_CM"); maxStr != "" {
		if max, err := strconv.ParseFloat(maxStr, 64); err == nil && max > 0 {
			cfg.DistanceMaxCM = max
		} else {
			return cfg, fmt.Errorf("invalid BIN_DISTANCE_MAX_CM: %s", maxStr)
		}
	}

	if cfg.DistanceMaxCM <= cfg.DistanceMinCM {
		return cfg, fmt.Errorf("BIN_DISTANCE_MAX_CM (%v) must exceed BIN_DISTANCE_MIN_CM (%v)",
			cfg.DistanceMaxCM, cfg.DistanceMinCM)
	}

	if policy := os.Getenv("ALERT_POLICY"); policy != "" {
		if policy != "stacked" && policy != "highest" {
			return cfg, fmt.Errorf("invalid ALERT_POLICY: %s (use stacked or highest)", policy)
		}
		cfg.AlertPolicy = policy
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	cfg.MQTTBroker = os.Getenv("MQTT_BROKER")
	if prefix := os.Getenv("MQTT_TOPIC_PREFIX"); prefix != "" {
		cfg.MQTTTopicPrefix = prefix
	}
	if clientID := os.Getenv("MQTT_CLIENT_ID"); clientID != "" {
		cfg.MQTTClientID = clientID
	}
	cfg.MQTTUsername = os.Getenv("MQTT_USERNAME")
	cfg.MQTTPassword = os.Getenv("MQTT_PASSWORD")

	return cfg, nil
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// MQTTEnabled reports whether the MQTT ingest bridge should start.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}
