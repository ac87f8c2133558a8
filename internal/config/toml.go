// Package config provides configuration helpers, TOML parsing and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Play  PlayFileConfig  `toml:"play"`
	Serve ServeFileConfig `toml:"serve"`
}

// PlayFileConfig maps quiz client settings.
type PlayFileConfig struct {
	APIURL        *string        `toml:"api-url" env:"KILLCHAIN_API_URL"`
	Timeout       *time.Duration `toml:"timeout" env:"KILLCHAIN_TIMEOUT"`
	FallbackDelay *time.Duration `toml:"fallback-delay" env:"KILLCHAIN_FALLBACK_DELAY"`
	Seed          *int64         `toml:"seed" env:"KILLCHAIN_SEED"`
	LogFile       *string        `toml:"log-file" env:"KILLCHAIN_LOG_FILE"`
	Offline       *bool          `toml:"offline" env:"KILLCHAIN_OFFLINE"`
}

// ServeFileConfig maps content server settings.
type ServeFileConfig struct {
	Addr       *string        `toml:"addr" env:"KILLCHAIN_ADDR"`
	DB         *string        `toml:"db" env:"KILLCHAIN_DB"`
	Content    *string        `toml:"content" env:"KILLCHAIN_CONTENT"`
	Rate       *int           `toml:"rate" env:"KILLCHAIN_RATE"`
	Burst      *int           `toml:"burst" env:"KILLCHAIN_BURST"`
	Seed       *int64         `toml:"seed" env:"KILLCHAIN_SERVER_SEED"`
	SessionTTL *time.Duration `toml:"session-ttl" env:"KILLCHAIN_SESSION_TTL"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
