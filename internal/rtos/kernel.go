package rtos

import (
	"context"
	"errors"
	"unsafe"

	"github.com/GriffinCanCode/threadport/internal/heap"
)

var (
	ErrTimeout  = errors.New("rtos: timed out")
	ErrDetached = errors.New("rtos: object detached")
	ErrNotHeld  = errors.New("rtos: mutex not held")
	ErrInvalid  = errors.New("rtos: invalid argument")
	ErrState    = errors.New("rtos: invalid thread state")
)

// Level is the interrupt state returned by DisableInterrupts.
type Level uintptr

// Tick is the scheduler's timekeeping unit.
type Tick uint64

// Timeout is a mutex acquisition bound expressed in ticks.
type Timeout int64

const (
	WaitForever Timeout = -1
	NoWait      Timeout = 0
)

// IPCFlag selects how blocked waiters are woken.
type IPCFlag int

const (
	// IPCFIFO grants waiters in arrival order.
	IPCFIFO IPCFlag = iota
	// IPCPrio grants waiters by priority. Sim treats it as IPCFIFO.
	IPCPrio
)

// Entry is a thread body.
type Entry func(ctx context.Context, arg unsafe.Pointer)

// ThreadSpec bundles everything a thread needs to start. Entry and Arg
// travel together so no shared slot is needed to hand the entry point to
// the new thread.
type ThreadSpec struct {
	Name      string
	Entry     Entry
	Arg       unsafe.Pointer
	Stack     *heap.Block
	StackSize uintptr
	Priority  int
}

// Kernel is the set of scheduler primitives used by the port layer.
type Kernel interface {
	// Self returns the thread owning ctx.
	Self(ctx context.Context) *Thread

	// InitThread builds a thread control block in tcb. The thread does not
	// run until Startup.
	InitThread(tcb *heap.Block, spec ThreadSpec) (*Thread, error)
	Startup(t *Thread) error
	// DetachThread hands the thread object back to the kernel. Detaching an
	// already detached thread is a no-op.
	DetachThread(t *Thread)

	InitMutex(name string, flag IPCFlag) (*Mutex, error)
	DetachMutex(m *Mutex)

	DisableInterrupts() Level
	EnableInterrupts(level Level)

	TickGet() Tick
	TickPerSecond() uint32
	Delay(ticks Tick)
}

// TickFromMillisecond converts ms to ticks, rounding up so that a delay is
// never shorter than requested.
func TickFromMillisecond(tickPerSecond uint32, ms uint64) Tick {
	tps := uint64(tickPerSecond)
	return Tick(tps*(ms/1000) + (tps*(ms%1000)+999)/1000)
}
