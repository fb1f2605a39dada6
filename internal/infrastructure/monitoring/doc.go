// Package monitoring provides Prometheus metrics for the port layer.
//
// Each Metrics value owns a private registry. Hosts that expose metrics
// register it with their own gatherer.
//
// Metrics Categories:
//   - Threads: active count, creations, finishes, allocation failures
//   - Mutexes: registry size
//   - Root scans: scan count, duration, ranges reported by kind
//   - Heap: bytes in use per heap
//
// Example Usage:
//
//	metrics := monitoring.NewMetrics()
//	p, err := port.Init(ctx, kernel, stack, port.WithMetrics(metrics))
package monitoring
