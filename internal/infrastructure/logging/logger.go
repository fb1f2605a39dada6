package logging

import (
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/threadport/internal/infrastructure/config"
)

// Logger is the process logger. Components take named children of it.
type Logger struct {
	*zap.Logger
}

// Config selects the level, encoding and sinks of a Logger.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
}

// FromEnv builds a Config from the environment log settings. Output goes to
// stderr.
func FromEnv(c config.LogConfig) Config {
	return Config{
		Level:       c.Level,
		Development: c.Development,
		OutputPaths: []string{"stderr"},
	}
}

// New builds a logger. Production loggers write JSON without sampling, so
// a burst of thread creations is logged in full; development loggers write
// colored console lines with stack traces on warnings.
func New(cfg Config) (*Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapCfg.Level = level
	zapCfg.Sampling = nil
	zapCfg.EncoderConfig.TimeKey = "time"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapCfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	zapCfg.ErrorOutputPaths = []string{"stderr"}
	zapCfg.OutputPaths = cfg.OutputPaths
	if len(zapCfg.OutputPaths) == 0 {
		zapCfg.OutputPaths = []string{"stderr"}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return &Logger{Logger: logger}, nil
}

// Sync flushes buffered entries. Syncing a terminal fails on most
// platforms; that error is dropped.
func (l *Logger) Sync() error {
	err := l.Logger.Sync()
	if errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) {
		return nil
	}
	return err
}
