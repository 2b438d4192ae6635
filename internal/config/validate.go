package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return "validation errors: " + strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func Validate(cfg *Config) error {
	var errs ValidationErrors

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
		"test":        true,
	}
	if !validEnvs[cfg.Env] {
		errs = append(errs, ValidationError{
			Field:   "env",
			Message: "must be one of: development, staging, production, test",
		})
	}

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateStream(&cfg.Stream)...)
	errs = append(errs, validateWatch(&cfg.Watch)...)
	errs = append(errs, validateSimulator(&cfg.Simulator)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateServer(s *ServerConfig) ValidationErrors {
	var errs ValidationErrors

	if s.WSURL == "" {
		errs = append(errs, ValidationError{
			Field:   "server.ws_url",
			Message: "is required",
		})
	} else if !strings.HasPrefix(s.WSURL, "ws://") && !strings.HasPrefix(s.WSURL, "wss://") {
		errs = append(errs, ValidationError{
			Field:   "server.ws_url",
			Message: "must start with ws:// or wss://",
		})
	}

	if s.APIURL != "" && !strings.HasPrefix(s.APIURL, "http://") && !strings.HasPrefix(s.APIURL, "https://") {
		errs = append(errs, ValidationError{
			Field:   "server.api_url",
			Message: "must start with http:// or https://",
		})
	}

	return errs
}

func validateStream(s *StreamConfig) ValidationErrors {
	var errs ValidationErrors

	errs = appendDurationError(errs, "stream.heartbeat_interval", s.HeartbeatInterval)
	errs = appendDurationError(errs, "stream.reconnect_delay", s.ReconnectDelay)
	errs = appendDurationError(errs, "stream.max_reconnect_wait", s.MaxReconnectWait)
	errs = appendDurationError(errs, "stream.handshake_timeout", s.HandshakeTimeout)
	errs = appendDurationError(errs, "stream.write_timeout", s.WriteTimeout)

	if s.MaxReconnectAttempts <= 0 {
		errs = append(errs, ValidationError{
			Field:   "stream.max_reconnect_attempts",
			Message: "must be greater than 0",
		})
	}
	if s.QueueCapacity <= 0 {
		errs = append(errs, ValidationError{
			Field:   "stream.queue_capacity",
			Message: "must be greater than 0",
		})
	}
	if s.GetReconnectDelay() > s.GetMaxReconnectWait() {
		errs = append(errs, ValidationError{
			Field:   "stream.reconnect_delay",
			Message: "must not exceed max_reconnect_wait",
		})
	}

	return errs
}

func validateWatch(w *WatchConfig) ValidationErrors {
	var errs ValidationErrors

	if len(w.Symbols) == 0 {
		errs = append(errs, ValidationError{
			Field:   "watch.symbols",
			Message: "must list at least one symbol",
		})
	}
	if w.NoticeDisplay != "" {
		errs = appendDurationError(errs, "watch.notice_display", w.NoticeDisplay)
	}

	return errs
}

func validateSimulator(s *SimulatorConfig) ValidationErrors {
	var errs ValidationErrors

	if s.ListenAddr == "" {
		errs = append(errs, ValidationError{
			Field:   "simulator.listen_addr",
			Message: "is required",
		})
	}
	if len(s.Symbols) == 0 {
		errs = append(errs, ValidationError{
			Field:   "simulator.symbols",
			Message: "must list at least one symbol",
		})
	}
	errs = appendDurationError(errs, "simulator.tick_interval", s.TickInterval)

	if s.TradeChance < 0 || s.TradeChance > 1 {
		errs = append(errs, ValidationError{
			Field:   "simulator.trade_chance",
			Message: "must be between 0 and 1",
		})
	}

	crons := map[string]string{
		"simulator.market_cron":    s.MarketCron,
		"simulator.advice_cron":    s.AdviceCron,
		"simulator.portfolio_cron": s.PortfolioCron,
		"simulator.report_cron":    s.ReportCron,
	}
	for field, spec := range crons {
		if spec == "" {
			errs = append(errs, ValidationError{Field: field, Message: "is required"})
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "must be a valid cron spec: " + err.Error(),
			})
		}
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[l.Level] {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: "must be one of: debug, info, warn, error",
		})
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}
	if !validFormats[l.Format] {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: "must be one of: json, console",
		})
	}

	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging",
			Message: "rotation settings must be non-negative",
		})
	}

	return errs
}

func appendDurationError(errs ValidationErrors, field, value string) ValidationErrors {
	if value == "" {
		return append(errs, ValidationError{Field: field, Message: "is required"})
	}
	if d, err := time.ParseDuration(value); err != nil || d <= 0 {
		return append(errs, ValidationError{
			Field:   field,
			Message: "must be a positive duration (e.g. 30s)",
		})
	}
	return errs
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	var ve ValidationError
	var ves ValidationErrors
	return errors.As(err, &ve) || errors.As(err, &ves)
}
