package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/threadport/internal/infrastructure/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		level   zapcore.Level
		wantErr bool
	}{
		{"info", Config{Level: "info"}, zapcore.InfoLevel, false},
		{"development debug", Config{Level: "debug", Development: true}, zapcore.DebugLevel, false},
		{"warn", Config{Level: "warn"}, zapcore.WarnLevel, false},
		{"bad level", Config{Level: "loud"}, zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.level))
			assert.False(t, logger.Core().Enabled(tt.level-1))
		})
	}
}

func TestFromEnv(t *testing.T) {
	cfg := FromEnv(config.LogConfig{Level: "debug", Development: true})

	assert.Equal(t, "debug", cfg.Level)
	assert.True(t, cfg.Development)
	assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)

	logger, err := New(FromEnv(config.Default().Logging))
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestProductionWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "port.log")

	logger, err := New(Config{Level: "info", OutputPaths: []string{path}})
	require.NoError(t, err)

	logger.Named("port").Info("Thread created", zap.String("thread", "mp00"))
	for i := 0; i < 200; i++ {
		logger.Info("Burst")
	}
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)

	assert.Contains(t, out, `"msg":"Thread created"`)
	assert.Contains(t, out, `"thread":"mp00"`)
	assert.Contains(t, out, `"logger":"port"`)
	assert.Contains(t, out, `"time":"`)
	// Unsampled: every repeated entry is kept.
	assert.Equal(t, 201, strings.Count(out, "\n"))
}
