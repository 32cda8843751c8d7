// Package config loads apikit settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the settings shared by the CLI and the services it builds.
type Config struct {
	BaseURL     string        `env:"APIKIT_BASE_URL" envDefault:"https://mock-server.free.beeceptor.com"`
	Timeout     time.Duration `env:"APIKIT_TIMEOUT" envDefault:"30s"`
	Platform    string        `env:"APIKIT_PLATFORM" envDefault:"native"`
	StoragePath string        `env:"APIKIT_STORAGE_PATH"`
	LogLevel    string        `env:"APIKIT_LOG_LEVEL" envDefault:"info"`
	StaleTime   time.Duration `env:"APIKIT_STALE_TIME" envDefault:"1m"`
	QueryRetry  uint          `env:"APIKIT_QUERY_RETRY" envDefault:"3"`
	RefreshSpec string        `env:"APIKIT_REFRESH_SPEC"`
	Language    string        `env:"APIKIT_LANGUAGE"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads a .env file from the working directory when present and then
// parses the environment. StoragePath defaults to a file under the user's
// config directory.
func Load() (Config, error) {
	_ = godotenv.Load() // no error if .env doesn't exist

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.StoragePath == "" {
		path, err := DefaultStoragePath()
		if err != nil {
			return Config{}, err
		}
		cfg.StoragePath = path
	}
	return cfg, nil
}
