package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all port layer configuration.
type Config struct {
	Thread  ThreadConfig
	Kernel  KernelConfig
	Heap    HeapConfig
	Logging LogConfig
}

// ThreadConfig holds thread creation defaults.
type ThreadConfig struct {
	MinStackSize     uint64        `envconfig:"THREAD_MIN_STACK" default:"5120"`
	DefaultStackSize uint64        `envconfig:"THREAD_DEFAULT_STACK" default:"6144"`
	StackMargin      uint64        `envconfig:"THREAD_STACK_MARGIN" default:"1024"`
	Priority         int           `envconfig:"THREAD_PRIORITY" default:"16"`
	DeinitGrace      time.Duration `envconfig:"THREAD_DEINIT_GRACE" default:"200ms"`
}

// KernelConfig holds scheduler settings.
type KernelConfig struct {
	TickPerSecond uint32 `envconfig:"KERNEL_TICK_HZ" default:"1000"`
	PriorityMax   int    `envconfig:"KERNEL_PRIORITY_MAX" default:"32"`
}

// HeapConfig holds allocator budgets in bytes. Zero means unlimited.
type HeapConfig struct {
	GCLimit     uint64 `envconfig:"HEAP_GC_LIMIT" default:"0"`
	SystemLimit uint64 `envconfig:"HEAP_SYSTEM_LIMIT" default:"0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Thread: ThreadConfig{
			MinStackSize:     5 * 1024,
			DefaultStackSize: 6 * 1024,
			StackMargin:      1024,
			Priority:         16,
			DeinitGrace:      200 * time.Millisecond,
		},
		Kernel: KernelConfig{
			TickPerSecond: 1000,
			PriorityMax:   32,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Validate checks the relationships between settings.
func (c *Config) Validate() error {
	if err := c.Thread.Validate(); err != nil {
		return err
	}
	if c.Kernel.TickPerSecond == 0 {
		return fmt.Errorf("invalid config: tick rate must be positive")
	}
	if p := c.Thread.Priority; p >= c.Kernel.PriorityMax {
		return fmt.Errorf("invalid config: priority %d outside [0, %d)", p, c.Kernel.PriorityMax)
	}
	return nil
}

// Validate checks that the stack margin can always be subtracted from the
// default and minimum stack sizes.
func (t ThreadConfig) Validate() error {
	if t.StackMargin >= t.MinStackSize {
		return fmt.Errorf("invalid config: stack margin %d must be below minimum stack %d", t.StackMargin, t.MinStackSize)
	}
	if t.DefaultStackSize < t.MinStackSize {
		return fmt.Errorf("invalid config: default stack %d below minimum stack %d", t.DefaultStackSize, t.MinStackSize)
	}
	if t.Priority < 0 {
		return fmt.Errorf("invalid config: negative priority %d", t.Priority)
	}
	return nil
}
