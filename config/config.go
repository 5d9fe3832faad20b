package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/idkrafsan/BetTracker/database"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Ledger configuration
	AccountID       string // Document id of the singleton account
	RecentBetsLimit int    // Number of bets shown in the dashboard's recent list
	Timezone        string // IANA zone used for calendar day arithmetic

	// HTTP configuration
	HTTPAddr    string
	CORSOrigins []string

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated), empty disables publishing

	// Redis configuration
	RedisURL          string // Empty disables the dashboard cache
	DashboardCacheKey string
	DashboardChannel  string

	// Logging
	LogLevel  string
	LogFormat string // "text" or "json"

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// Location returns the configured timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// load loads configuration from the environment, reading a .env file first if present
func load() (*Config, error) {
	// A missing .env file is fine, real deployments set the environment directly
	_ = godotenv.Load()

	config := &Config{
		// Database
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		// Ledger
		AccountID:       getEnvWithDefault("ACCOUNT_ID", "main"),
		RecentBetsLimit: 5,
		Timezone:        getEnvWithDefault("TIMEZONE", "UTC"),

		// HTTP
		HTTPAddr:    getEnvWithDefault("HTTP_ADDR", ":8080"),
		CORSOrigins: splitList(getEnvWithDefault("CORS_ORIGINS", "*")),

		// NATS
		NATSServers: os.Getenv("NATS_SERVERS"),

		// Redis
		RedisURL:          os.Getenv("REDIS_URL"),
		DashboardCacheKey: getEnvWithDefault("DASHBOARD_CACHE_KEY", "bettracker:dashboard"),
		DashboardChannel:  getEnvWithDefault("DASHBOARD_CHANNEL", "bettracker:dashboard:updates"),

		// Logging
		LogLevel:  getEnvWithDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvWithDefault("LOG_FORMAT", "text"),

		// Environment
		Environment: os.Getenv("ENVIRONMENT"),
	}

	// Override defaults if environment variables are set
	if limit := os.Getenv("RECENT_BETS_LIMIT"); limit != "" {
		if parsed, err := strconv.Atoi(limit); err == nil && parsed > 0 {
			config.RecentBetsLimit = parsed
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if strings.TrimSpace(config.AccountID) == "" {
			return nil, fmt.Errorf("ACCOUNT_ID cannot be blank")
		}
		if _, err := time.LoadLocation(config.Timezone); err != nil {
			return nil, fmt.Errorf("invalid TIMEZONE %q: %w", config.Timezone, err)
		}
	}

	return config, nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:       "test",
		AccountID:         "main",
		RecentBetsLimit:   5,
		Timezone:          "UTC",
		HTTPAddr:          ":0",
		CORSOrigins:       []string{"*"},
		DashboardCacheKey: "bettracker:test:dashboard",
		DashboardChannel:  "bettracker:test:dashboard:updates",
		LogLevel:          "debug",
		LogFormat:         "text",
	}
}
