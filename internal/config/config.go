package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the suggestion service.
type Config struct {
	DB        DBConfig
	Redis     RedisConfig
	Session   SessionConfig
	Suggest   SuggestConfig
	Import    ImportConfig
	RateLimit RateLimitConfig
	Port      string
}

// DBConfig holds PostgreSQL configuration.
type DBConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	SSLRootCert string
}

// DSN returns the PostgreSQL connection string.
func (d DBConfig) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
	if d.SSLRootCert != "" {
		dsn += fmt.Sprintf(" sslrootcert=%s", d.SSLRootCert)
	}
	return dsn
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SessionConfig holds conversation-state cache configuration.
type SessionConfig struct {
	TTL time.Duration
}

// SuggestConfig holds suggestion selector configuration.
type SuggestConfig struct {
	MaxRetries int
}

// ImportConfig holds IMDb dataset import configuration.
type ImportConfig struct {
	BasicsURL  string
	RatingsURL string
}

// RateLimitConfig holds per-user event rate limiting configuration.
type RateLimitConfig struct {
	EventsPerMinute int
	Burst           int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	sessionTTLMin, _ := strconv.Atoi(getEnv("SESSION_TTL_MINUTES", "30"))
	maxRetries, _ := strconv.Atoi(getEnv("SUGGEST_MAX_RETRIES", "3"))
	eventsPerMin, _ := strconv.Atoi(getEnv("RATE_LIMIT_EVENTS_PER_MINUTE", "60"))
	burst, _ := strconv.Atoi(getEnv("RATE_LIMIT_BURST", "10"))

	cfg := &Config{
		DB: DBConfig{
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        dbPort,
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", "postgres"),
			DBName:      getEnv("DB_NAME", "watchnext"),
			SSLMode:     getEnv("DB_SSLMODE", "disable"),
			SSLRootCert: getEnv("DB_SSLROOTCERT", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Session: SessionConfig{
			TTL: time.Duration(sessionTTLMin) * time.Minute,
		},
		Suggest: SuggestConfig{
			MaxRetries: maxRetries,
		},
		Import: ImportConfig{
			BasicsURL:  getEnv("IMDB_BASICS_URL", "https://datasets.imdbws.com/title.basics.tsv.gz"),
			RatingsURL: getEnv("IMDB_RATINGS_URL", "https://datasets.imdbws.com/title.ratings.tsv.gz"),
		},
		RateLimit: RateLimitConfig{
			EventsPerMinute: eventsPerMin,
			Burst:           burst,
		},
		Port: getEnv("SERVER_PORT", "8080"),
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
