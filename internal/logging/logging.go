// Package logging builds the zap logger from configuration.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jqwei/dualstream/internal/config"
)

// New builds a logger from the logging configuration. stdout and stderr are
// written directly; any other output path selects a size-rotated file.
func New(cfg *config.LoggingConfig) (*zap.Logger, error) {
	level := parseLevel(cfg.Level)

	if cfg.OutputPath == "" || cfg.OutputPath == "stdout" || cfg.OutputPath == "stderr" {
		var zapCfg zap.Config
		if cfg.Format == "json" {
			zapCfg = zap.NewProductionConfig()
		} else {
			zapCfg = zap.NewDevelopmentConfig()
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
		if cfg.OutputPath != "" {
			zapCfg.OutputPaths = []string{cfg.OutputPath}
		}
		return zapCfg.Build()
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.OutputPath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	} else {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(writer), level)
	return zap.New(core, zap.AddCaller()), nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
