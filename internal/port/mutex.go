package port

import (
	"fmt"
	"unsafe"

	"github.com/GriffinCanCode/threadport/internal/heap"
	"github.com/GriffinCanCode/threadport/internal/rtos"
	"github.com/GriffinCanCode/threadport/internal/shared/id"
)

const mutexNodeSize = unsafe.Sizeof(mutexNode{})

// Mutex is an interpreter mutex. The zero value must be passed to
// Port.MutexInit before use.
type Mutex struct {
	name string
	os   *rtos.Mutex
}

type mutexNode struct {
	id    id.MutexID
	mutex *Mutex
	mem   *heap.Block
}

// Name returns the kernel name assigned at MutexInit.
func (m *Mutex) Name() string {
	return m.name
}

// Lock acquires m. When blocking it waits until the holder releases;
// otherwise it returns false at once if m is held. It also returns false
// once the port has been deinitialized.
func (m *Mutex) Lock(blocking bool) bool {
	if m.os == nil {
		return false
	}
	timeout := rtos.NoWait
	if blocking {
		timeout = rtos.WaitForever
	}
	return m.os.Take(timeout) == nil
}

// Unlock releases m. Unlocking a mutex held by another thread has whatever
// effect the kernel gives it.
func (m *Mutex) Unlock() {
	if m.os != nil {
		_ = m.os.Release()
	}
}

// MutexInit creates the kernel mutex behind m with FIFO wake order and adds
// m to the mutex registry. The registry is updated with interrupts
// disabled rather than under the thread registry lock, because the
// registry lock is itself created here.
func (p *Port) MutexInit(m *Mutex) error {
	level := p.kernel.DisableInterrupts()
	defer p.kernel.EnableInterrupts(level)

	if p.closed.Load() {
		return ErrClosed
	}

	mem, err := p.sysHeap.Alloc(mutexNodeSize)
	if err != nil {
		return p.allocFailed("mutex_node", "can't create mutex list node", err)
	}

	name := fmt.Sprintf("mpm%02d", p.mutexSeq.Add(1)-1)
	osm, err := p.kernel.InitMutex(name, rtos.IPCFIFO)
	if err != nil {
		_ = p.sysHeap.Free(mem)
		return fmt.Errorf("can't init mutex %q: %w", name, err)
	}

	m.name = name
	m.os = osm
	p.mutexes = append(p.mutexes, &mutexNode{id: id.NewMutexID(), mutex: m, mem: mem})

	p.metrics.MutexesRegistered.Set(float64(len(p.mutexes)))
	p.metrics.SetHeap("system", p.sysHeap.InUse())
	return nil
}

// Mutexes returns the number of registered mutexes, the registry lock
// included.
func (p *Port) Mutexes() int {
	level := p.kernel.DisableInterrupts()
	defer p.kernel.EnableInterrupts(level)
	return len(p.mutexes)
}
