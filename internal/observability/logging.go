// Package observability builds the structured loggers used across the battle engine.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/skirmish/internal/config"
)

// DefaultService names the process in every log line when the config leaves
// logging.service empty.
const DefaultService = "skirmish"

// NewLogger creates a structured logger from the given logging configuration.
// Every entry carries a "service" field. Sampling is off so per-turn battle
// lines are never dropped. opts are applied after the configuration.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig, opts ...zap.Option) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch cfg.Format {
	case "json":
		zapCfg = zap.NewProductionConfig()
	case "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.Sampling = nil
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	service := cfg.Service
	if service == "" {
		service = DefaultService
	}
	return logger.With(zap.String("service", service)), nil
}

// ForBattle returns a child of logger that tags every entry with the battle
// id and, when set, the location id.
func ForBattle(logger *zap.Logger, battleID, locationID string) *zap.Logger {
	fields := []zap.Field{zap.String("battle", battleID)}
	if locationID != "" {
		fields = append(fields, zap.String("location", locationID))
	}
	return OrNop(logger).With(fields...)
}

// OrNop returns logger, or a no-op logger when logger is nil. Components that
// accept an optional logger use it so logging can never fail.
func OrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
