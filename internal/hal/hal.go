// Package hal provides the interpreter's time shims on top of the kernel
// tick counter.
package hal

import (
	"github.com/GriffinCanCode/threadport/internal/rtos"
)

// Clock converts kernel ticks to wall-clock units.
type Clock struct {
	kernel rtos.Kernel
}

// New creates a clock over k.
func New(k rtos.Kernel) *Clock {
	return &Clock{kernel: k}
}

// TicksCPU returns the raw tick counter.
func (c *Clock) TicksCPU() uint64 {
	return uint64(c.kernel.TickGet())
}

// TicksMs returns milliseconds since boot at tick resolution.
func (c *Clock) TicksMs() uint64 {
	return uint64(c.kernel.TickGet()) * 1000 / uint64(c.kernel.TickPerSecond())
}

// TicksUs returns microseconds since boot at tick resolution.
func (c *Clock) TicksUs() uint64 {
	return uint64(c.kernel.TickGet()) * 1000000 / uint64(c.kernel.TickPerSecond())
}

// DelayMs suspends the caller for at least ms milliseconds, rounded up to
// whole ticks.
func (c *Clock) DelayMs(ms uint64) {
	c.kernel.Delay(rtos.TickFromMillisecond(c.kernel.TickPerSecond(), ms))
}

// DelayUs suspends the caller for us microseconds truncated to whole
// milliseconds. Sub-millisecond delays return immediately.
func (c *Clock) DelayUs(us uint64) {
	c.DelayMs(us / 1000)
}
