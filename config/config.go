package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string

	// Backend collaborator endpoints.
	APIBaseURL     string
	HealthPath     string
	APITimeout     time.Duration
	DataDir        string
	DatabaseFile   string

	// Connectivity monitor.
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration

	// Sync coordinator.
	SyncInterval   time.Duration
	SyncDebounce   time.Duration
	ReconnectDelay time.Duration
	InterItemDelay time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	CleanupGrace   time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:        getEnv("APP_PORT", "7380"),
		AppMode:        getEnv("APP_MODE", "debug"),
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:8080/api/v1"),
		HealthPath:     getEnv("API_HEALTH_PATH", "/health"),
		APITimeout:     getEnvAsDuration("API_TIMEOUT", 10*time.Second),
		DataDir:        getEnv("DATA_DIR", "./data"),
		DatabaseFile:   getEnv("DATABASE_FILE", "tindahan.db"),
		ProbeInterval:  getEnvAsDuration("PROBE_INTERVAL", 30*time.Second),
		ProbeTimeout:   getEnvAsDuration("PROBE_TIMEOUT", 5*time.Second),
		SyncInterval:   getEnvAsDuration("SYNC_INTERVAL", 5*time.Second),
		SyncDebounce:   getEnvAsDuration("SYNC_DEBOUNCE", time.Second),
		ReconnectDelay: getEnvAsDuration("RECONNECT_DELAY", 500*time.Millisecond),
		InterItemDelay: getEnvAsDuration("INTER_ITEM_DELAY", 200*time.Millisecond),
		BackoffBase:    getEnvAsDuration("BACKOFF_BASE", time.Second),
		BackoffMax:     getEnvAsDuration("BACKOFF_MAX", 30*time.Second),
		CleanupGrace:   getEnvAsDuration("CLEANUP_GRACE", time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return fallback
}
