package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	KurrentDB KurrentDBConfig
	Auth      AuthConfig
	Ranking   RankingConfig
	Matching  MatchingConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB),
// used for publishing transfer lifecycle events.
type KurrentDBConfig struct {
	Host     string
	Port     int
	Insecure bool
	Username string
	Password string
}

type AuthConfig struct {
	JWTSecret string
	// TokenTTL bounds the lifetime of issued access tokens
	TokenTTL time.Duration
}

// RankingConfig holds configuration for the external ranking service.
type RankingConfig struct {
	// URL is the base URL of the ranking service
	URL string
	// Timeout bounds the ranking call; on expiry the scorer falls back
	// to distance ranking
	Timeout time.Duration
	Enabled bool
}

// MatchingConfig holds parameters for candidate search and fan-out.
type MatchingConfig struct {
	// SearchRadiusKM limits candidate hospitals to this distance from the patient
	SearchRadiusKM float64
	// FanOutWidth is the maximum number of sibling transfer requests
	// created per patient
	FanOutWidth int
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "pulseroute"),
			Password: getEnv("DB_PASSWORD", "pulseroute"),
			Database: getEnv("DB_NAME", "pulseroute"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
			TokenTTL:  getEnvDuration("JWT_TOKEN_TTL", 24*time.Hour),
		},
		Ranking: RankingConfig{
			URL:     getEnv("RANKING_SERVICE_URL", "http://ml-server:8000"),
			Timeout: getEnvDuration("RANKING_SERVICE_TIMEOUT", 30*time.Second),
			Enabled: getEnvBool("RANKING_ENABLED", true),
		},
		Matching: MatchingConfig{
			SearchRadiusKM: getEnvFloat("HOSPITAL_SEARCH_RADIUS_KM", 50.0),
			FanOutWidth:    getEnvInt("TRANSFER_FANOUT_WIDTH", 10),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}
