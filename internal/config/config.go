// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int
	Host           string
	MetricsEnabled bool
}

// DatabaseConfig holds durable store settings. Type "memory" runs the engine
// without persistence; "postgres" enables the write-through store.
type DatabaseConfig struct {
	Type string
	URI  string
}

// EmailConfig holds the transactional email settings. Empty APIKey disables
// the notifier.
type EmailConfig struct {
	APIKey      string
	SenderEmail string
	SenderName  string
}

// Config holds the complete application configuration
type Config struct {
	Server            *ServerConfig
	Database          *DatabaseConfig
	Email             *EmailConfig
	JWTSecret         string
	AllowedOrigins    []string
	SendRatePerMinute int
	Debug             bool
}

// DefaultConfig provides default server settings
func DefaultConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		MetricsEnabled: true,
	}
}

// LoadConfig loads configuration from environment variables and applies defaults
func LoadConfig() (*Config, error) {
	// Try to load .env file from multiple possible locations
	envLocations := []string{
		".env",       // Current directory
		"../../.env", // Project root when running from cmd/server
	}

	envLoaded := false
	for _, location := range envLocations {
		if err := godotenv.Load(location); err == nil {
			envLoaded = true
			break
		}
	}

	if !envLoaded {
		// Silent failure if no .env exists, which is fine
		_ = godotenv.Load()
	}

	serverConfig := DefaultConfig()

	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			serverConfig.Port = port
		}
	}

	if host := os.Getenv("HOST"); host != "" {
		serverConfig.Host = host
	}

	if metricsEnabled := os.Getenv("METRICS_ENABLED"); metricsEnabled != "" {
		serverConfig.MetricsEnabled = metricsEnabled == "true"
	}

	dbConfig := &DatabaseConfig{Type: "memory"}
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		dbConfig.Type = dbType
	}

	switch dbConfig.Type {
	case "memory":
		// Single-process in-memory engine, no persistence.
	case "postgres":
		dbConfig.URI = os.Getenv("DATABASE_URL")
		if dbConfig.URI == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required when DB_TYPE is postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported DB_TYPE %q (expected \"memory\" or \"postgres\")", dbConfig.Type)
	}

	config := &Config{
		Server:   serverConfig,
		Database: dbConfig,
		Email: &EmailConfig{
			APIKey:      os.Getenv("BREVO_API_KEY"),
			SenderEmail: getEnvOrDefault("BREVO_SENDER_EMAIL", "no-reply@campus-market.local"),
			SenderName:  getEnvOrDefault("BREVO_SENDER_NAME", "Campus Market"),
		},
		JWTSecret:         getEnvOrDefault("JWT_SECRET", "campus_market_secret_should_be_loaded_from_env"),
		AllowedOrigins:    []string{"*"},
		SendRatePerMinute: 60,
		Debug:             false,
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	if rateStr := os.Getenv("SEND_RATE_PER_MINUTE"); rateStr != "" {
		if rate, err := strconv.Atoi(rateStr); err == nil && rate > 0 {
			config.SendRatePerMinute = rate
		}
	}

	if debug := os.Getenv("DEBUG"); debug == "true" {
		config.Debug = true
	}

	return config, nil
}

// Helper function to get environment variable with default fallback
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
