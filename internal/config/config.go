package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	Env      string
	Port     int
	GinMode  string
	DataDir  string
	LogFile  string
	LogLevel string

	JWTSecret       string
	SessionTTL      time.Duration
	SessionCapacity int
	BcryptCost      int

	Auction AuctionConfig
	AMQP    AMQPConfig
}

// AuctionConfig bounds the engine. BidHistoryCapacity is part of the item
// record size and must not change for an existing data directory.
type AuctionConfig struct {
	BidHistoryCapacity int
	ListLimit          int
	MyBidsLimit        int
	HistoryLimit       int
	SweepInterval      time.Duration
	WithdrawCooldown   time.Duration
}

// AMQPConfig enables the event publisher when URL is set.
type AMQPConfig struct {
	URL     string
	Queue   string
	Durable bool
}

func (c AMQPConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads and validates configuration from the environment, after
// loading an optional .env file.
func Load() (Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv reads configuration without validating it. Read-only tools use it
// so they need no server secrets.
func FromEnv() Config {
	_ = godotenv.Load() // Load .env file if present

	cfg := Config{
		Env:      getEnv("ENV", "production"),
		Port:     getEnvInt("PORT", 8080),
		GinMode:  getEnv("GIN_MODE", "release"),
		DataDir:  getEnv("DATA_DIR", "data"),
		LogFile:  getEnv("LOG_FILE", "logs/server.log"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		JWTSecret:       os.Getenv("JWT_SECRET"),
		SessionTTL:      getEnvDuration("SESSION_TTL", 24*time.Hour),
		SessionCapacity: getEnvInt("SESSION_CAPACITY", 100),
		BcryptCost:      getEnvInt("BCRYPT_COST", bcrypt.DefaultCost),

		Auction: AuctionConfig{
			BidHistoryCapacity: getEnvInt("BID_HISTORY_CAPACITY", 10),
			ListLimit:          getEnvInt("LIST_LIMIT", 100),
			MyBidsLimit:        getEnvInt("MY_BIDS_LIMIT", 50),
			HistoryLimit:       getEnvInt("HISTORY_LIMIT", 50),
			SweepInterval:      getEnvDuration("SWEEP_INTERVAL", time.Second),
			WithdrawCooldown:   getEnvDuration("WITHDRAW_COOLDOWN", 60*time.Second),
		},
		AMQP: AMQPConfig{
			URL:     os.Getenv("AMQP_URL"),
			Queue:   getEnv("AMQP_QUEUE", "auction.events"),
			Durable: getEnv("AMQP_DURABLE", "true") == "true",
		},
	}

	if cfg.JWTSecret == "" && cfg.IsDev() {
		cfg.JWTSecret = "dev-secret"
	}
	return cfg
}

// IsDev is true for ENV=dev and ENV=test.
func (c Config) IsDev() bool {
	return c.Env == "dev" || c.Env == "test"
}

// Validate checks the loaded values.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR is required"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.SessionCapacity < 1 {
		errs = append(errs, errors.New("SESSION_CAPACITY must be at least 1"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be within %d..%d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	a := c.Auction
	if a.BidHistoryCapacity < 1 {
		errs = append(errs, errors.New("BID_HISTORY_CAPACITY must be at least 1"))
	}
	if a.ListLimit < 1 || a.MyBidsLimit < 1 || a.HistoryLimit < 1 {
		errs = append(errs, errors.New("LIST_LIMIT, MY_BIDS_LIMIT and HISTORY_LIMIT must be at least 1"))
	}
	if a.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if a.WithdrawCooldown < 0 {
		errs = append(errs, errors.New("WITHDRAW_COOLDOWN must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(key); exists {
		if value, err := strconv.Atoi(strings.TrimSpace(valueStr)); err == nil {
			return value
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	valueStr = strings.TrimSpace(valueStr)
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
