package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Ontime device endpoint. Host may be empty when discovery is enabled.
	OntimeHost string
	OntimePort int

	// Connection policy
	ReconnectInterval time.Duration
	HTTPTimeout       time.Duration

	// Redis (variable/feedback surface)
	RedisURL       string
	RedisKeyPrefix string

	// mDNS discovery, used when no host is configured
	DiscoveryEnabled bool
	DiscoveryTimeout time.Duration

	// Internal metrics/health server
	MetricsAddr string
}

func Load() (*Config, error) {
	cfg := &Config{
		OntimeHost:        getEnv("ONTIME_HOST", ""),
		OntimePort:        getEnvAsInt("ONTIME_PORT", 4001),
		ReconnectInterval: getEnvAsDuration("RECONNECT_INTERVAL", time.Second),
		HTTPTimeout:       getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisKeyPrefix:    getEnv("REDIS_KEY_PREFIX", ""),
		DiscoveryEnabled:  getEnvAsBool("DISCOVERY_ENABLED", false),
		DiscoveryTimeout:  getEnvAsDuration("DISCOVERY_TIMEOUT", 10*time.Second),
		MetricsAddr:       getEnv("METRICS_ADDR", ":9090"),
	}

	// Validate required configuration. The device host itself is checked at
	// connect time because discovery may fill it in.
	if cfg.OntimeHost == "" && !cfg.DiscoveryEnabled {
		return nil, fmt.Errorf("ONTIME_HOST is required unless DISCOVERY_ENABLED is true")
	}
	if cfg.OntimePort <= 0 || cfg.OntimePort > 65535 {
		return nil, fmt.Errorf("ONTIME_PORT must be a valid TCP port, got %d", cfg.OntimePort)
	}
	if cfg.ReconnectInterval <= 0 {
		return nil, fmt.Errorf("RECONNECT_INTERVAL must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
