// Copyright 2024-2026 Aiku AI

// Package config loads and validates the relay configuration file.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"go.mau.fi/util/dbutil"
	"gopkg.in/yaml.v3"
)

// Config is the top-level relay configuration.
type Config struct {
	Platform PlatformConfig `yaml:"platform" validate:"required"`
	Database dbutil.Config  `yaml:"database"`
	Admin    AdminConfig    `yaml:"admin"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// PlatformConfig holds the external chat platform connection settings.
type PlatformConfig struct {
	BaseURL    string `yaml:"base_url" validate:"required,url"`
	GatewayURL string `yaml:"gateway_url" validate:"required"`
	// Token can be left empty in the file and supplied via the
	// GUILDRELAY_TOKEN environment variable instead.
	Token string `yaml:"token"`
	// BotName is the relay account's display name, used to identify the
	// relay's webhooks on receiver channels.
	BotName string `yaml:"bot_name" validate:"required"`
}

// AdminConfig holds the admin HTTP API settings.
type AdminConfig struct {
	Addr string `yaml:"addr"`
	// Token guards the admin API. Empty disables the guard.
	Token string `yaml:"token"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Console switches from JSON to human-readable output.
	Console bool `yaml:"console"`
}

// Load reads, defaults, env-overrides and validates a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{
		Admin:   AdminConfig{Addr: ":29330"},
		Logging: LoggingConfig{Level: "info"},
	}
	cfg.Database.Type = "sqlite3-fk-wal"
	cfg.Database.URI = "file:guildrelay.db?_txlock=immediate"

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if token := os.Getenv("GUILDRELAY_TOKEN"); token != "" {
		cfg.Platform.Token = token
	}
	if cfg.Platform.Token == "" {
		return nil, fmt.Errorf("platform token is not set (config or GUILDRELAY_TOKEN)")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
