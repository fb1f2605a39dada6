package port

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/threadport/internal/hal"
	"github.com/GriffinCanCode/threadport/internal/heap"
	"github.com/GriffinCanCode/threadport/internal/infrastructure/config"
	"github.com/GriffinCanCode/threadport/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/threadport/internal/rtos"
	"github.com/GriffinCanCode/threadport/internal/shared/id"
)

var (
	// ErrOutOfMemory is wrapped by every allocation failure.
	ErrOutOfMemory = heap.ErrOutOfMemory
	// ErrClosed is returned after Deinit.
	ErrClosed = errors.New("port: deinitialized")
)

// Port is the thread and mutex registry of one interpreter.
type Port struct {
	kernel  rtos.Kernel
	clock   *hal.Clock
	gcHeap  *heap.Arena
	sysHeap *heap.Arena
	cfg     config.ThreadConfig
	logger  *zap.Logger
	metrics *monitoring.Metrics
	scanLog rate.Sometimes

	lock    Mutex
	threads []*Node // Protected by interrupt masking; writers also hold lock
	main    *Node

	mutexes []*mutexNode // Protected by interrupt masking

	mainState unsafe.Pointer
	threadSeq atomic.Uint32
	mutexSeq  atomic.Uint32
	closed    atomic.Bool
}

// Option configures a Port.
type Option func(*Port)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Port) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics *monitoring.Metrics) Option {
	return func(p *Port) {
		if metrics != nil {
			p.metrics = metrics
		}
	}
}

// WithThreadConfig overrides stack sizes, default priority and the
// shutdown grace period. Init rejects a config that fails Validate.
func WithThreadConfig(cfg config.ThreadConfig) Option {
	return func(p *Port) {
		p.cfg = cfg
	}
}

// WithHeap sets the heap that thread control blocks, stacks and thread
// nodes are allocated from.
func WithHeap(a *heap.Arena) Option {
	return func(p *Port) {
		if a != nil {
			p.gcHeap = a
		}
	}
}

// WithSystemHeap sets the heap mutex nodes are allocated from.
func WithSystemHeap(a *heap.Arena) Option {
	return func(p *Port) {
		if a != nil {
			p.sysHeap = a
		}
	}
}

// WithMainState sets the state pointer installed for the bootstrap thread.
func WithMainState(state unsafe.Pointer) Option {
	return func(p *Port) {
		p.mainState = state
	}
}

// Init registers the calling thread, whose stack is stack, as the main
// thread and creates the registry lock. It must run once, on the bootstrap
// thread, before any other thread exists.
func Init(ctx context.Context, k rtos.Kernel, stack *heap.Block, opts ...Option) (*Port, error) {
	p := &Port{
		kernel:  k,
		clock:   hal.New(k),
		gcHeap:  heap.New(heap.Unlimited),
		sysHeap: heap.New(heap.Unlimited),
		cfg:     config.Default().Thread,
		logger:  zap.NewNop(),
		scanLog: rate.Sometimes{Interval: time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	if p.metrics == nil {
		p.metrics = monitoring.NewMetrics()
	}

	self := k.Self(ctx)
	p.SetState(ctx, p.mainState)

	p.main = &Node{
		id:       id.NewThreadID(),
		name:     self.Name(),
		handle:   self,
		ready:    true,
		stack:    stack,
		stackLen: stack.Words(),
	}
	p.threads = []*Node{p.main}

	if err := p.MutexInit(&p.lock); err != nil {
		return nil, fmt.Errorf("failed to create registry lock: %w", err)
	}

	p.metrics.ThreadsActive.Set(1)
	p.logger.Info("Thread port initialized",
		zap.String("main", p.main.id.String()),
		zap.Uintptr("main_stack_words", p.main.stackLen),
		zap.Uint64("default_stack", p.cfg.DefaultStackSize),
		zap.Int("priority", p.cfg.Priority))
	return p, nil
}

// Deinit hands every non-main thread and every mutex back to the kernel.
// It runs with interrupts disabled rather than under the registry lock,
// since other threads may never run again to release it. Registry lock
// holders touch the lists only with interrupts disabled too, so they see
// either the full registry or the emptied one. Thread stacks and
// nodes are left to process teardown. Deinit then waits the configured
// grace period so the kernel can reap detached threads.
func (p *Port) Deinit() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}

	level := p.kernel.DisableInterrupts()

	detachedThreads := 0
	for _, n := range p.threads {
		if n == p.main {
			continue
		}
		p.kernel.DetachThread(n.handle)
		detachedThreads++
	}
	p.threads = []*Node{p.main}

	detachedMutexes := len(p.mutexes)
	for _, mn := range p.mutexes {
		p.kernel.DetachMutex(mn.mutex.os)
		if err := p.sysHeap.Free(mn.mem); err != nil {
			p.logger.Error("Failed to free mutex node", zap.String("mutex", mn.mutex.name), zap.Error(err))
		}
	}
	p.mutexes = nil

	p.kernel.EnableInterrupts(level)

	p.metrics.ThreadsActive.Set(1)
	p.metrics.MutexesRegistered.Set(0)
	p.metrics.SetHeap("system", p.sysHeap.InUse())
	p.logger.Info("Thread port deinitialized",
		zap.Int("threads_detached", detachedThreads),
		zap.Int("mutexes_detached", detachedMutexes),
		zap.Duration("grace", p.cfg.DeinitGrace))

	p.clock.DelayMs(uint64(p.cfg.DeinitGrace / time.Millisecond))
}

// Closed reports whether Deinit has run.
func (p *Port) Closed() bool {
	return p.closed.Load()
}

// Kernel returns the kernel the port runs on.
func (p *Port) Kernel() rtos.Kernel {
	return p.kernel
}

// Clock returns the tick shims for the port's kernel.
func (p *Port) Clock() *hal.Clock {
	return p.clock
}

// Metrics returns the port's metrics.
func (p *Port) Metrics() *monitoring.Metrics {
	return p.metrics
}
