// Package rtos defines the scheduler primitives the port layer consumes and
// provides Sim, a preemptive kernel built on goroutines.
//
// The contract mirrors a small real-time kernel:
//   - Threads: initialise a control block over caller-provided memory, start
//     it, detach it when it is done.
//   - Mutexes: FIFO-ordered mutual exclusion with "wait forever" and
//     "don't wait" acquisition.
//   - Interrupt masking: a global exclusive section used for short list
//     updates and for shutdown.
//   - Ticks: a monotonic counter and a tick-granular delay.
//
// Thread identity travels in context.Context. Every thread started by Sim
// receives a context from which Kernel.Self recovers its *Thread; a context
// without one resolves to the bootstrap thread.
package rtos
