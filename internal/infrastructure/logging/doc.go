// Package logging builds the zap logger shared by the kernel and the port.
//
// Two modes are available:
//   - Production: JSON lines, no sampling
//   - Development: colored console output with stack traces
//
// Logs go to stderr so that a hosted interpreter keeps stdout for program
// output.
//
// Example Usage:
//
//	logger, err := logging.New(logging.FromEnv(cfg.Logging))
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//	kernelLog := logger.Named("kernel")
package logging
