package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// Database configuration
	DatabaseURL string

	// NATS configuration
	NATSURL string

	// Serial device configuration
	SerialPort     string
	SerialBaudRate int

	// Maximum number of buffered, unframed bytes accepted from the device
	// before the framer drops its buffer.
	MaxLineBuffer int

	// PendingQueueSize is the capacity of the chunk queue between the serial
	// reader and the processing worker. Bytes received while a debit is in
	// flight wait here.
	PendingQueueSize int
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DATABASE_URL is required"))
	}

	// NATS configuration
	cfg.NATSURL = getEnvOrDefault("NATS_URL", "nats://localhost:4222")

	// Serial device configuration
	cfg.SerialPort = os.Getenv("SERIAL_PORT")
	if cfg.SerialPort == "" {
		errs = append(errs, fmt.Errorf("SERIAL_PORT is required"))
	}

	baud, err := parseInt("SERIAL_BAUD_RATE", "9600")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SerialBaudRate = baud
	}

	maxBuf, err := parseInt("MAX_LINE_BUFFER", "4096")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxLineBuffer = maxBuf
	}

	queueSize, err := parseInt("PENDING_QUEUE_SIZE", "64")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.PendingQueueSize = queueSize
	}

	if cfg.SerialBaudRate <= 0 {
		errs = append(errs, fmt.Errorf("SERIAL_BAUD_RATE must be positive, got %d", cfg.SerialBaudRate))
	}
	if cfg.MaxLineBuffer <= 0 {
		errs = append(errs, fmt.Errorf("MAX_LINE_BUFFER must be positive, got %d", cfg.MaxLineBuffer))
	}
	if cfg.PendingQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("PENDING_QUEUE_SIZE must be positive, got %d", cfg.PendingQueueSize))
	}

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("DatabaseURL is required"))
	}
	if c.SerialPort == "" {
		errs = append(errs, fmt.Errorf("SerialPort is required"))
	}
	if c.SerialBaudRate <= 0 {
		errs = append(errs, fmt.Errorf("SerialBaudRate must be positive"))
	}
	if c.MaxLineBuffer <= 0 {
		errs = append(errs, fmt.Errorf("MaxLineBuffer must be positive"))
	}
	if c.PendingQueueSize <= 0 {
		errs = append(errs, fmt.Errorf("PendingQueueSize must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %v", errs)
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseInt parses an integer environment variable with a default.
func parseInt(key, defaultValue string) (int, error) {
	value := getEnvOrDefault(key, defaultValue)
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q", key, value)
	}
	return n, nil
}
