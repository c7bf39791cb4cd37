package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig
	HTTP      HTTPConfig
	GRPC      GRPCConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Policy    PolicyConfig
	Log       LogConfig
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string // SQLite database file path
}

// HTTPConfig contains REST listener settings.
type HTTPConfig struct {
	Address string // e.g. ":3000"
}

// GRPCConfig contains the health listener settings. Empty Address disables it.
type GRPCConfig struct {
	Address string
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret  string        // token signing secret
	APIKey     string        // static client application key
	TokenTTL   time.Duration // bearer token lifetime
	BcryptCost int
}

// RateLimitConfig bounds login attempts per client address.
type RateLimitConfig struct {
	LoginPerSecond float64
	LoginBurst     int
}

// PolicyConfig points at an optional YAML route policy overlay.
type PolicyConfig struct {
	File string
}

// LogConfig selects the slog level.
type LogConfig struct {
	Level slog.Level
}

// Development-only secrets used by LoadWithDefaults.
const (
	devJWTSecret = "dev-secret-change-me"
	devAPIKey    = "dev-api-key-change-me"
)

// Load reads configuration from the environment, after merging an optional
// dotenv file. JWT_SECRET and API_KEY are required.
func Load() (*Config, error) {
	cfg, err := load("", "")
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is not set; required for production")
	}
	if cfg.Auth.APIKey == "" {
		return nil, errors.New("API_KEY environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but falls back to development secrets.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	return load(devJWTSecret, devAPIKey)
}

func load(defaultSecret, defaultKey string) (*Config, error) {
	if err := loadEnvFile(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}
	ttl, err := getEnvDuration("TOKEN_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cost, err := getEnvInt("BCRYPT_COST", bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("BCRYPT_COST %d out of range [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	burst, err := getEnvInt("LOGIN_RATE_BURST", 10)
	if err != nil {
		return nil, err
	}
	rps, err := getEnvFloat("LOGIN_RATE_LIMIT", 5)
	if err != nil {
		return nil, err
	}
	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	return &Config{
		Database: DatabaseConfig{Path: getEnv("DB_PATH", "cards.db")},
		HTTP:     HTTPConfig{Address: getEnv("HTTP_ADDRESS", ":3000")},
		GRPC:     GRPCConfig{Address: getEnv("GRPC_ADDRESS", "")},
		Auth: AuthConfig{
			JWTSecret:  getEnv("JWT_SECRET", defaultSecret),
			APIKey:     getEnv("API_KEY", defaultKey),
			TokenTTL:   ttl,
			BcryptCost: cost,
		},
		RateLimit: RateLimitConfig{LoginPerSecond: rps, LoginBurst: burst},
		Policy:    PolicyConfig{File: getEnv("ROUTE_POLICY_FILE", "")},
		Log:       LogConfig{Level: level},
	}, nil
}

// loadEnvFile merges a dotenv file into the process environment without
// overriding variables that are already set. A missing file is ignored.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %w", key, err)
		}
		return f, nil
	}
	return defaultVal, nil
}

// getEnvDuration accepts Go durations ("24h") or a bare number of seconds ("86400").
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultVal, nil
	}
	var d time.Duration
	if secs, err := strconv.Atoi(value); err == nil {
		d = time.Duration(secs) * time.Second
	} else if d, err = time.ParseDuration(value); err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive", key)
	}
	return d, nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q: %w", s, err)
	}
	return l, nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	grpcAddr := c.GRPC.Address
	if grpcAddr == "" {
		grpcAddr = "disabled"
	}
	return fmt.Sprintf("Config{DB: %s, HTTP: %s, gRPC: %s, TokenTTL: %s, Auth: *** (masked) ***}",
		c.Database.Path, c.HTTP.Address, grpcAddr, c.Auth.TokenTTL)
}
