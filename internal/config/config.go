// Package config loads rentcore settings from an optional .env file and the
// process environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"rentcore/internal/blob"
	"rentcore/internal/core"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig
	Storage core.StorageConfig
	Blob    blob.Options
	Engine  EngineConfig
	Log     LogConfig
	Metrics MetricsConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// EngineConfig tunes the hierarchy builder
type EngineConfig struct {
	MaxConcurrency int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics-related configuration
type MetricsConfig struct {
	Prefix string
}

// IsProduction reports whether production logging and defaults apply.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// Load reads the given env files (".env" when none are named) and then the
// environment. Only a missing implicit .env is ignored; a named file that is
// missing or malformed fails the load. Process variables win over file values.
func Load(files ...string) (*Config, error) {
	implicit := len(files) == 0
	if implicit {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if implicit && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Addr:            getEnv("RENTCORE_HTTP_ADDR", ":8080"),
			Env:             getEnv("RENTCORE_ENV", "development"),
			ShutdownTimeout: getEnvAsDuration("RENTCORE_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Storage: core.StorageConfig{
			Driver:            core.StorageDriver(getEnv("RENTCORE_STORAGE_DRIVER", string(core.StorageSQLite))),
			SQLitePath:        getEnv("RENTCORE_SQLITE_PATH", "rentcore.db"),
			PostgresDSN:       getEnv("RENTCORE_POSTGRES_DSN", ""),
			RelationalDialect: getEnv("RENTCORE_RELATIONAL_DIALECT", "postgres"),
			RelationalDSN:     getEnv("RENTCORE_RELATIONAL_DSN", ""),
		},
		Blob: blob.Options{
			Driver: getEnv("RENTCORE_BLOB_DRIVER", string(blob.DriverMemory)),
			S3: blob.S3Config{
				Bucket:          getEnv("RENTCORE_BLOB_S3_BUCKET", ""),
				Region:          getEnv("RENTCORE_BLOB_S3_REGION", "us-east-1"),
				Endpoint:        getEnv("RENTCORE_BLOB_S3_ENDPOINT", ""),
				AccessKeyID:     getEnv("RENTCORE_BLOB_S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("RENTCORE_BLOB_S3_SECRET_ACCESS_KEY", ""),
				PathStyle:       getEnvAsBool("RENTCORE_BLOB_S3_PATH_STYLE", false),
			},
		},
		Engine: EngineConfig{
			MaxConcurrency: getEnvAsInt("RENTCORE_FANOUT", core.DefaultMaxConcurrency),
		},
		Log: LogConfig{
			Level: getEnv("RENTCORE_LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("RENTCORE_METRICS_PREFIX", "rentcore"),
		},
	}, nil
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
