package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	// DefaultTenantID seeds a tenant on first boot for self-hosted installs.
	DefaultTenantID int64
	SeedStages      bool

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RateLimit RateLimitConfig

	// SyncWorkerEnabled controls the in-process calendar sync worker.
	SyncWorkerEnabled bool
}

// RateLimitConfig throttles the public tracking pixel. Rates are tokens per
// second, bursts the bucket capacity. Disabled by default so self-hosted
// installs work without Redis.
type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ScriptRate  float64
	ScriptBurst int
	ClientRate  float64
	ClientBurst int

	FormLockTTLSeconds int
}

// Module provides the configuration via Fx.
var Module = fx.Provide(Load)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:         getenv("APP_SERVICE", "doorbell"),
		AppVersion:      getenv("APP_VERSION", "0.1.0"),
		Environment:     getenv("ENVIRONMENT", "development"),
		DefaultTenantID: getenvInt64("DEFAULT_TENANT", 0),
		SeedStages:      getenvBool("SEED_DEFAULT_STAGES", true),
		OTLPEndpoint:    getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "doorbell"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RateLimit: RateLimitConfig{
			Enabled:            getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:          getenv("REDIS_ADDR", ""),
			RedisPassword:      getenv("REDIS_PASSWORD", ""),
			RedisDB:            getenvInt("REDIS_DB", 0),
			ScriptRate:         getenvFloat("RATE_LIMIT_SCRIPT_RATE", 20),
			ScriptBurst:        getenvInt("RATE_LIMIT_SCRIPT_BURST", 60),
			ClientRate:         getenvFloat("RATE_LIMIT_CLIENT_RATE", 5),
			ClientBurst:        getenvInt("RATE_LIMIT_CLIENT_BURST", 15),
			FormLockTTLSeconds: getenvInt("RATE_LIMIT_FORM_LOCK_TTL", 10),
		},

		SyncWorkerEnabled: getenvBool("SYNC_WORKER_ENABLED", true),
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
