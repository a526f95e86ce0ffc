package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates the configuration of the whole service.
type Config struct {
	Server  ServerConfig
	Therapy TherapyConfig
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	therapy, err := loadTherapyConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Therapy: therapy}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" as-is.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// TherapyConfig describes the remote analysis service. A zero timeout means
// outstanding requests are never abandoned, which is the historical
// behavior; set THERAPY_TIMEOUT_SECONDS to bound them.
type TherapyConfig struct {
	BaseURL string
	Timeout time.Duration
}

func loadTherapyConfig() (TherapyConfig, error) {
	timeoutSeconds, err := parseOptionalIntEnv("THERAPY_TIMEOUT_SECONDS")
	if err != nil {
		return TherapyConfig{}, err
	}

	timeout := time.Duration(0)
	if timeoutSeconds != nil {
		if *timeoutSeconds < 0 {
			return TherapyConfig{}, fmt.Errorf("THERAPY_TIMEOUT_SECONDS must not be negative, got %d", *timeoutSeconds)
		}
		timeout = time.Duration(*timeoutSeconds) * time.Second
	}

	return TherapyConfig{
		BaseURL: getEnvOrDefault("THERAPY_BASE_URL", "http://127.0.0.1:8000"),
		Timeout: timeout,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
