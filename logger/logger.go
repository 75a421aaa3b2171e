package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isdmx/codepad/config"
)

// ServiceName is attached to every entry as the "service" field.
const ServiceName = "codepad"

// Modes accepted by logging.mode.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

func NewFromConfig(cfg *config.Config) (*zap.Logger, error) {
	return New(cfg.Logging.Mode, cfg.Logging.Level)
}

// New builds the logger described by mode and level.
func New(mode, level string) (*zap.Logger, error) {
	cfg, err := Config(mode, level)
	if err != nil {
		return nil, err
	}
	return cfg.Build()
}

// Config returns the zap configuration for mode and level. Production
// entries are JSON with an ISO8601 "timestamp" key and human-readable
// durations, so the lifecycle fields expires_in and delay read as "5m0s".
func Config(mode, level string) (zap.Config, error) {
	cfg, err := baseConfig(mode)
	if err != nil {
		return zap.Config{}, err
	}

	logLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return zap.Config{}, fmt.Errorf("invalid logging level: %s, must be one of 'debug', 'info', 'warn', 'error', 'dpanic', 'panic', 'fatal'", level)
	}
	cfg.Level = zap.NewAtomicLevelAt(logLevel)
	cfg.InitialFields = map[string]any{"service": ServiceName}
	return cfg, nil
}

func baseConfig(mode string) (zap.Config, error) {
	switch mode {
	case ModeDevelopment:
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg, nil
	case ModeProduction:
		cfg := zap.NewProductionConfig()
		enc := &cfg.EncoderConfig
		enc.TimeKey = "timestamp"
		enc.EncodeTime = zapcore.ISO8601TimeEncoder
		enc.EncodeDuration = zapcore.StringDurationEncoder
		return cfg, nil
	default:
		return zap.Config{}, fmt.Errorf("invalid logging mode: %s, must be 'production' or 'development'", mode)
	}
}
