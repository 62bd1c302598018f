package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"ina3221-go/services/powermon"
)

// fileConfig is the YAML layout read by -config.
type fileConfig struct {
	Bus       string          `yaml:"bus"`
	SpeedKHz  int64           `yaml:"speed_khz"`
	LogLevel  string          `yaml:"log_level"`
	Heartbeat time.Duration   `yaml:"heartbeat"`
	Monitor   powermon.Config `yaml:"monitor"`
}

func defaultFileConfig() fileConfig {
	return fileConfig{
		SpeedKHz:  400,
		LogLevel:  "info",
		Heartbeat: 10 * time.Second,
		Monitor:   powermon.DefaultConfig(),
	}
}

// loadConfig overlays the file at path onto the defaults. An empty path
// returns the defaults.
func loadConfig(path string) (fileConfig, error) {
	cfg := defaultFileConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if cfg.SpeedKHz < 0 {
		return cfg, fmt.Errorf("speed_khz must not be negative, got %d", cfg.SpeedKHz)
	}
	cfg.Monitor.Bus = cfg.Bus
	if err := cfg.Monitor.Validate(); err != nil {
		return cfg, fmt.Errorf("monitor config: %w", err)
	}
	return cfg, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
