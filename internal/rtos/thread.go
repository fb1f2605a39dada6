package rtos

import (
	"sync/atomic"
	"unsafe"

	"github.com/GriffinCanCode/threadport/internal/heap"
)

// ThreadState is the lifecycle state of a kernel thread.
type ThreadState int32

const (
	ThreadInit ThreadState = iota
	ThreadReady
	ThreadClosed
)

// String returns the string representation of the state
func (s ThreadState) String() string {
	switch s {
	case ThreadInit:
		return "init"
	case ThreadReady:
		return "ready"
	case ThreadClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ThreadObjectSize is the number of bytes a thread control block occupies.
const ThreadObjectSize = unsafe.Sizeof(Thread{})

// Thread is a kernel thread object.
type Thread struct {
	name     string
	priority int
	tcb      *heap.Block
	spec     ThreadSpec

	state    atomic.Int32
	userData unsafe.Pointer // accessed atomically
	done     chan struct{}
}

func newThread(tcb *heap.Block, spec ThreadSpec) *Thread {
	return &Thread{
		name:     spec.Name,
		priority: spec.Priority,
		tcb:      tcb,
		spec:     spec,
		done:     make(chan struct{}),
	}
}

func (t *Thread) Name() string     { return t.name }
func (t *Thread) Priority() int    { return t.priority }
func (t *Thread) TCB() *heap.Block { return t.tcb }

// State returns the current lifecycle state.
func (t *Thread) State() ThreadState {
	return ThreadState(t.state.Load())
}

// UserData returns the thread-local slot.
func (t *Thread) UserData() unsafe.Pointer {
	return atomic.LoadPointer(&t.userData)
}

// SetUserData stores p in the thread-local slot.
func (t *Thread) SetUserData(p unsafe.Pointer) {
	atomic.StorePointer(&t.userData, p)
}

// Done is closed once the thread body has returned.
func (t *Thread) Done() <-chan struct{} {
	return t.done
}
