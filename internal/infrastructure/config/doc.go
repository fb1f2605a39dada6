// Package config provides 12-factor configuration for the port layer.
//
// Configuration is loaded from environment variables with defaults that
// match the interpreter's thread contract.
//
// Configuration Sections:
//   - Thread: stack floor, default stack, recovery margin, priority, deinit grace
//   - Kernel: tick rate and priority levels of the scheduler
//   - Heap: byte budgets for the GC heap and the system heap
//   - Logging: log level and output format
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("default stack: %d bytes\n", cfg.Thread.DefaultStackSize)
//
// Environment Variables:
//   - THREAD_MIN_STACK, THREAD_DEFAULT_STACK, THREAD_STACK_MARGIN
//   - THREAD_PRIORITY, THREAD_DEINIT_GRACE
//   - KERNEL_TICK_HZ, KERNEL_PRIORITY_MAX
//   - HEAP_GC_LIMIT, HEAP_SYSTEM_LIMIT
//   - LOG_LEVEL, LOG_DEV
package config
