package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from a YAML file and applies environment
// variable overrides.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := loadFromYAML(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromYAML loads configuration from a YAML file.
func loadFromYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, use defaults
			return nil
		}
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration.
func applyEnvOverrides(cfg *Config) {
	// Environment
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = v
	}

	// Server endpoints
	if v := os.Getenv("BOT_WS_URL"); v != "" {
		cfg.Server.WSURL = v
	}
	if v := os.Getenv("BOT_API_URL"); v != "" {
		cfg.Server.APIURL = v
	}

	// Stream client
	if v := os.Getenv("STREAM_HEARTBEAT_INTERVAL"); v != "" {
		cfg.Stream.HeartbeatInterval = v
	}
	if v := os.Getenv("STREAM_RECONNECT_DELAY"); v != "" {
		cfg.Stream.ReconnectDelay = v
	}
	if v := os.Getenv("STREAM_MAX_RECONNECT_WAIT"); v != "" {
		cfg.Stream.MaxReconnectWait = v
	}
	if v := os.Getenv("STREAM_MAX_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stream.MaxReconnectAttempts = n
		}
	}
	if v := os.Getenv("STREAM_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stream.QueueCapacity = n
		}
	}

	// Watcher
	if v := os.Getenv("WATCH_SYMBOLS"); v != "" {
		cfg.Watch.Symbols = splitList(v)
	}

	// Simulator
	if v := os.Getenv("SIM_LISTEN_ADDR"); v != "" {
		cfg.Simulator.ListenAddr = v
	}
	if v := os.Getenv("SIM_SYMBOLS"); v != "" {
		cfg.Simulator.Symbols = splitList(v)
	}
	if v := os.Getenv("SIM_TICK_INTERVAL"); v != "" {
		cfg.Simulator.TickInterval = v
	}

	// Logging
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_OUTPUT_PATH"); v != "" {
		cfg.Logging.OutputPath = v
	}
}

// splitList parses a comma-separated list, trimming whitespace.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// MustLoad loads configuration and panics on error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
