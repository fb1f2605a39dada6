package port

import (
	"context"
	"fmt"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/threadport/internal/heap"
	"github.com/GriffinCanCode/threadport/internal/rtos"
	"github.com/GriffinCanCode/threadport/internal/shared/id"
)

// Entry is the body of an interpreter thread.
type Entry = rtos.Entry

const nodeSize = unsafe.Sizeof(Node{})

// Node describes one interpreter thread.
type Node struct {
	id     id.ThreadID
	name   string
	handle *rtos.Thread
	ready  bool
	arg    unsafe.Pointer

	stack    *heap.Block
	stackLen uintptr // in words
	tcb      *heap.Block
	mem      *heap.Block
}

// ThreadInfo is a snapshot of one registry entry.
type ThreadInfo struct {
	ID         id.ThreadID
	Created    time.Time
	Name       string
	Ready      bool
	Main       bool
	StackWords uintptr
	Handle     *rtos.Thread
}

// stackSizes applies the stack contract to a requested size. It returns the
// number of bytes to allocate and the usable size reported back to the
// caller. Above the floor, a recovery margin is held back so an interpreter
// that notices it is close to its limit can still unwind.
func (p *Port) stackSizes(requested uintptr) (alloc, usable uintptr) {
	floor := uintptr(p.cfg.MinStackSize)
	margin := uintptr(p.cfg.StackMargin)

	switch {
	case requested == 0:
		alloc = uintptr(p.cfg.DefaultStackSize)
		return alloc, alloc - margin
	case requested <= floor:
		return floor, floor
	default:
		return requested, requested - margin
	}
}

// Create starts a thread with a generated name and the default priority.
func (p *Port) Create(ctx context.Context, entry Entry, arg unsafe.Pointer, stackSize *uintptr) error {
	name := fmt.Sprintf("mp%02d", p.threadSeq.Add(1)-1)
	return p.CreateEx(ctx, entry, arg, stackSize, p.cfg.Priority, name)
}

// CreateEx allocates a thread control block, a stack and a registry node,
// links the node and starts entry(arg) on a new kernel thread. On return
// *stackSize holds the usable stack size. The new thread may not have
// started running yet; it must call Start first and Finish last.
//
// Allocation failures wrap ErrOutOfMemory; anything allocated by the call
// is released before returning.
func (p *Port) CreateEx(ctx context.Context, entry Entry, arg unsafe.Pointer, stackSize *uintptr, priority int, name string) error {
	if p.closed.Load() {
		return ErrClosed
	}

	alloc, usable := p.stackSizes(*stackSize)

	tcb, err := p.gcHeap.Alloc(rtos.ThreadObjectSize)
	if err != nil {
		return p.allocFailed("tcb", "can't create thread TCB", err)
	}
	stack, err := p.gcHeap.Alloc(alloc)
	if err != nil {
		p.free(tcb)
		return p.allocFailed("stack", "can't create thread stack", err)
	}
	mem, err := p.gcHeap.Alloc(nodeSize)
	if err != nil {
		p.free(tcb, stack)
		return p.allocFailed("node", "can't create thread list node", err)
	}

	n := &Node{
		id:       id.NewThreadID(),
		name:     name,
		arg:      arg,
		stack:    stack,
		stackLen: usable / heap.WordSize,
		tcb:      tcb,
		mem:      mem,
	}

	if !p.lock.Lock(true) {
		p.free(tcb, stack, mem)
		return ErrClosed
	}

	th, err := p.kernel.InitThread(tcb, rtos.ThreadSpec{
		Name:      name,
		Entry:     entry,
		Arg:       arg,
		Stack:     stack,
		StackSize: usable,
		Priority:  priority,
	})
	if err != nil {
		p.lock.Unlock()
		p.free(tcb, stack, mem)
		return fmt.Errorf("can't init thread %q: %w", name, err)
	}

	n.handle = th
	linked := false
	p.masked(func() {
		if linked = !p.closed.Load(); linked {
			p.threads = append(p.threads, n)
		}
	})
	if !linked {
		p.lock.Unlock()
		p.kernel.DetachThread(th)
		p.free(tcb, stack, mem)
		return ErrClosed
	}

	if err := p.kernel.Startup(th); err != nil {
		p.masked(func() {
			p.unlink(n)
		})
		p.lock.Unlock()

		p.kernel.DetachThread(th)
		p.free(tcb, stack, mem)
		return fmt.Errorf("can't start thread %q: %w", name, err)
	}

	p.masked(func() {
		p.metrics.ThreadsActive.Set(float64(len(p.threads)))
	})
	p.lock.Unlock()

	*stackSize = usable
	p.metrics.ThreadsCreated.Inc()
	p.metrics.SetHeap("gc", p.gcHeap.InUse())
	p.logger.Debug("Thread created",
		zap.String("id", n.id.String()),
		zap.String("thread", name),
		zap.Int("priority", priority),
		zap.Uintptr("stack_size", usable))
	return nil
}

// Start marks the calling thread ready. A thread created by CreateEx must
// call it before anything else. It reports false if the caller is not
// registered.
func (p *Port) Start(ctx context.Context) bool {
	if p.closed.Load() {
		return false
	}
	self := p.kernel.Self(ctx)

	if !p.lock.Lock(true) {
		return false
	}
	var n *Node
	closed := false
	p.masked(func() {
		if closed = p.closed.Load(); !closed {
			if n = p.lookup(self); n != nil {
				n.ready = true
			}
		}
	})
	p.lock.Unlock()

	if closed {
		return false
	}
	if n == nil {
		p.logger.Warn("Start called by unregistered thread", zap.String("thread", self.Name()))
		return false
	}
	return true
}

// Finish removes the calling thread from the registry, frees its stack,
// control block and node, and detaches it from the kernel. It must be the
// thread's last call into the port. The main thread is never removed.
func (p *Port) Finish(ctx context.Context) bool {
	if p.closed.Load() {
		return false
	}
	self := p.kernel.Self(ctx)
	if self == p.main.handle {
		p.logger.Warn("Finish called by main thread")
		return false
	}

	if !p.lock.Lock(true) {
		return false
	}
	var n *Node
	closed := false
	p.masked(func() {
		// Deinit owns every node still linked once the port is closed.
		if closed = p.closed.Load(); closed {
			return
		}
		if n = p.lookup(self); n != nil {
			n.ready = false
			p.unlink(n)
			p.metrics.ThreadsActive.Set(float64(len(p.threads)))
		}
	})
	if n != nil {
		p.free(n.stack, n.tcb, n.mem)
	}
	p.lock.Unlock()

	if closed {
		return false
	}
	if n == nil {
		p.logger.Warn("Finish called by unregistered thread", zap.String("thread", self.Name()))
		return false
	}

	// Outside the lock: detaching hands the thread back to the kernel.
	p.kernel.DetachThread(self)

	p.metrics.ThreadsFinished.Inc()
	p.logger.Debug("Thread finished", zap.String("id", n.id.String()), zap.String("thread", n.name))
	return true
}

// State returns the calling thread's interpreter state pointer.
func (p *Port) State(ctx context.Context) unsafe.Pointer {
	return p.kernel.Self(ctx).UserData()
}

// SetState stores the calling thread's interpreter state pointer.
func (p *Port) SetState(ctx context.Context, state unsafe.Pointer) {
	p.kernel.Self(ctx).SetUserData(state)
}

// Threads returns a snapshot of the registry.
func (p *Port) Threads() []ThreadInfo {
	if !p.lock.Lock(true) {
		return []ThreadInfo{p.main.info(true)}
	}
	defer p.lock.Unlock()

	nodes := p.snapshot()
	out := make([]ThreadInfo, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.info(n == p.main))
	}
	return out
}

func (n *Node) info(main bool) ThreadInfo {
	return ThreadInfo{
		ID:         n.id,
		Created:    n.id.Created(),
		Name:       n.name,
		Ready:      n.ready,
		Main:       main,
		StackWords: n.stackLen,
		Handle:     n.handle,
	}
}

// masked runs fn with interrupts disabled. Every read and write of the
// thread list happens inside it, so Deinit, which holds only the mask,
// never races a registry lock holder.
func (p *Port) masked(fn func()) {
	level := p.kernel.DisableInterrupts()
	defer p.kernel.EnableInterrupts(level)
	fn()
}

// snapshot copies the thread list.
func (p *Port) snapshot() []*Node {
	var nodes []*Node
	p.masked(func() {
		nodes = make([]*Node, len(p.threads))
		copy(nodes, p.threads)
	})
	return nodes
}

// lookup finds the node owning handle. Caller has interrupts masked.
func (p *Port) lookup(handle *rtos.Thread) *Node {
	for _, n := range p.threads {
		if n.handle == handle {
			return n
		}
	}
	return nil
}

// unlink removes n from the list. Caller has interrupts masked.
func (p *Port) unlink(n *Node) {
	for i, cur := range p.threads {
		if cur == n {
			p.threads = append(p.threads[:i], p.threads[i+1:]...)
			return
		}
	}
}

func (p *Port) free(blocks ...*heap.Block) {
	for _, b := range blocks {
		if err := p.gcHeap.Free(b); err != nil {
			p.logger.Error("Failed to free block", zap.Error(err))
		}
	}
	p.metrics.SetHeap("gc", p.gcHeap.InUse())
}

func (p *Port) allocFailed(resource, msg string, err error) error {
	p.metrics.RecordAllocFailure(resource)
	p.logger.Warn("Allocation failed", zap.String("resource", resource), zap.Error(err))
	return fmt.Errorf("%s: %w", msg, err)
}
