package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL        string
	JWTSecret          string
	Port               string
	DueLeadHours       int
	SweepSchedule      string
	UploadDir          string
	CORSOrigins        string
	RateLimitPerMinute int
}

// Load reads configuration from the environment, after loading a local .env file
// when one exists.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded .env file")
	}

	return &Config{
		DatabaseURL:        getEnv("DATABASE_URL", "gatherings.db"),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		Port:               getEnv("PORT", "8080"),
		DueLeadHours:       getEnvInt("DUE_LEAD_HOURS", 29),
		SweepSchedule:      getEnv("SWEEP_SCHEDULE", "@every 1m"),
		UploadDir:          getEnv("UPLOAD_DIR", "uploads"),
		CORSOrigins:        getEnv("CORS_ORIGINS", "*"),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
	}
}

// UsesPostgres reports whether DatabaseURL points at PostgreSQL rather than a
// SQLite file.
func (c *Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres")
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		slog.Warn("Ignoring invalid integer env value", "key", key, "value", value)
		return fallback
	}
	return n
}
