package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"chesspot/database"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP API
	HTTPAddr string

	// NATS configuration
	NATSServers string // NATS server addresses (comma-separated), empty disables the bus

	// Account configuration
	StartingBalance decimal.Decimal
	HouseAccountID  int64

	// Matchmaking configuration
	MatchmakingTimeout time.Duration // queue wait before falling back to an automated opponent

	// Automated opponent configuration
	BotMoveMinLatency time.Duration

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

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		HTTPAddr: getEnvWithDefault("HTTP_ADDR", ":8080"),

		NATSServers: os.Getenv("NATS_SERVERS"),

		StartingBalance: decimal.NewFromInt(1000),
		HouseAccountID:  1,

		MatchmakingTimeout: 60 * time.Second,
		BotMoveMinLatency:  1500 * time.Millisecond,

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if balance := os.Getenv("STARTING_BALANCE"); balance != "" {
		parsed, err := decimal.NewFromString(balance)
		if err != nil {
			return nil, fmt.Errorf("invalid STARTING_BALANCE %q: %w", balance, err)
		}
		config.StartingBalance = parsed
	}
	if houseID := os.Getenv("HOUSE_ACCOUNT_ID"); houseID != "" {
		parsed, err := strconv.ParseInt(houseID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid HOUSE_ACCOUNT_ID %q: %w", houseID, err)
		}
		config.HouseAccountID = parsed
	}
	if timeout := os.Getenv("MATCHMAKING_TIMEOUT_SECONDS"); timeout != "" {
		parsed, err := strconv.Atoi(timeout)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid MATCHMAKING_TIMEOUT_SECONDS %q", timeout)
		}
		config.MatchmakingTimeout = time.Duration(parsed) * time.Second
	}
	if latency := os.Getenv("BOT_MOVE_MIN_LATENCY_MS"); latency != "" {
		parsed, err := strconv.Atoi(latency)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("invalid BOT_MOVE_MIN_LATENCY_MS %q", latency)
		}
		config.BotMoveMinLatency = time.Duration(parsed) * time.Millisecond
	}

	if config.Environment == "" {
		config.Environment = "development"
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.DatabaseName != "" && strings.TrimSpace(config.DatabaseName) == "" {
			return nil, fmt.Errorf("DATABASE_NAME cannot be empty when provided")
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
		Environment:        "test",
		HTTPAddr:           ":0",
		StartingBalance:    decimal.NewFromInt(1000),
		HouseAccountID:     1,
		MatchmakingTimeout: 60 * time.Second,
		BotMoveMinLatency:  0,
	}
}
