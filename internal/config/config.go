// Package config provides configuration management for dualstream.
package config

import (
	"time"

	"github.com/jqwei/dualstream/internal/stream"
)

// Config is the root configuration structure.
type Config struct {
	Env       string          `yaml:"env"`
	Server    ServerConfig    `yaml:"server"`
	Stream    StreamConfig    `yaml:"stream"`
	Watch     WatchConfig     `yaml:"watch"`
	Simulator SimulatorConfig `yaml:"simulator"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig locates the bot server endpoints.
type ServerConfig struct {
	// WSURL is the event stream endpoint (ws:// or wss://).
	WSURL string `yaml:"ws_url"`
	// APIURL is the REST endpoint; only consumed by collaborators outside
	// this repo.
	APIURL string `yaml:"api_url"`
}

// StreamConfig tunes the event stream client.
type StreamConfig struct {
	HeartbeatInterval    string `yaml:"heartbeat_interval"`
	ReconnectDelay       string `yaml:"reconnect_delay"`
	MaxReconnectWait     string `yaml:"max_reconnect_wait"`
	MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"`
	QueueCapacity        int    `yaml:"queue_capacity"`
	HandshakeTimeout     string `yaml:"handshake_timeout"`
	WriteTimeout         string `yaml:"write_timeout"`
}

// GetHeartbeatInterval returns the heartbeat interval as a time.Duration.
func (s *StreamConfig) GetHeartbeatInterval() time.Duration {
	return parseDuration(s.HeartbeatInterval, stream.DefaultHeartbeatInterval)
}

// GetReconnectDelay returns the backoff base delay as a time.Duration.
func (s *StreamConfig) GetReconnectDelay() time.Duration {
	return parseDuration(s.ReconnectDelay, stream.DefaultReconnectDelay)
}

// GetMaxReconnectWait returns the backoff ceiling as a time.Duration.
func (s *StreamConfig) GetMaxReconnectWait() time.Duration {
	return parseDuration(s.MaxReconnectWait, stream.DefaultMaxReconnectWait)
}

// GetHandshakeTimeout returns the dial handshake timeout.
func (s *StreamConfig) GetHandshakeTimeout() time.Duration {
	return parseDuration(s.HandshakeTimeout, 10*time.Second)
}

// GetWriteTimeout returns the per-write deadline.
func (s *StreamConfig) GetWriteTimeout() time.Duration {
	return parseDuration(s.WriteTimeout, 10*time.Second)
}

// WatchConfig tunes the streamwatch binary.
type WatchConfig struct {
	// Symbols announced to the server on price subscription and used as the
	// AI recommendation allow-list.
	Symbols []string `yaml:"symbols"`
	// NoticeDisplay is how long non-critical notifications stay active.
	NoticeDisplay string `yaml:"notice_display"`
}

// GetNoticeDisplay returns the notification display interval.
func (w *WatchConfig) GetNoticeDisplay() time.Duration {
	return parseDuration(w.NoticeDisplay, 5*time.Second)
}

// SimulatorConfig tunes the botsim binary. The cron specs mirror the real
// bot's periodic task schedule.
type SimulatorConfig struct {
	ListenAddr   string   `yaml:"listen_addr"`
	Symbols      []string `yaml:"symbols"`
	TickInterval string   `yaml:"tick_interval"`
	// TradeChance is the per-tick probability of emitting a synthetic
	// trade execution, 0..1.
	TradeChance   float64 `yaml:"trade_chance"`
	MarketCron    string  `yaml:"market_cron"`
	AdviceCron    string  `yaml:"advice_cron"`
	PortfolioCron string  `yaml:"portfolio_cron"`
	ReportCron    string  `yaml:"report_cron"`
}

// GetTickInterval returns the price tick interval as a time.Duration.
func (s *SimulatorConfig) GetTickInterval() time.Duration {
	return parseDuration(s.TickInterval, 2*time.Second)
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	OutputPath string `yaml:"output_path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			WSURL:  "ws://localhost:8090/ws",
			APIURL: "http://localhost:8090/api/v1",
		},
		Stream: StreamConfig{
			HeartbeatInterval:    "30s",
			ReconnectDelay:       "5s",
			MaxReconnectWait:     "30s",
			MaxReconnectAttempts: 10,
			QueueCapacity:        100,
			HandshakeTimeout:     "10s",
			WriteTimeout:         "10s",
		},
		Watch: WatchConfig{
			Symbols:       []string{"BTCUSDT", "ETHUSDT"},
			NoticeDisplay: "5s",
		},
		Simulator: SimulatorConfig{
			ListenAddr:    ":8090",
			Symbols:       []string{"BTCUSDT", "ETHUSDT"},
			TickInterval:  "2s",
			TradeChance:   0.15,
			MarketCron:    "@every 5m",
			AdviceCron:    "@every 15m",
			PortfolioCron: "@every 1h",
			ReportCron:    "0 8 * * *",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// StreamClientConfig assembles the stream.Config for the configured
// endpoint.
func (c *Config) StreamClientConfig() stream.Config {
	return stream.Config{
		URL:                  c.Server.WSURL,
		HeartbeatInterval:    c.Stream.GetHeartbeatInterval(),
		ReconnectDelay:       c.Stream.GetReconnectDelay(),
		MaxReconnectWait:     c.Stream.GetMaxReconnectWait(),
		MaxReconnectAttempts: c.Stream.MaxReconnectAttempts,
		QueueCapacity:        c.Stream.QueueCapacity,
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return fallback
}
