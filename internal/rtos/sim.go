package rtos

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/threadport/internal/heap"
)

const (
	DefaultTickPerSecond = 1000
	DefaultPriorityMax   = 32
)

type threadKey struct{}

// SimConfig configures the simulated kernel.
type SimConfig struct {
	TickPerSecond uint32
	PriorityMax   int
	Logger        *zap.Logger
}

// DefaultSimConfig returns a 1 kHz kernel with 32 priority levels.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		TickPerSecond: DefaultTickPerSecond,
		PriorityMax:   DefaultPriorityMax,
	}
}

// Sim is a preemptive kernel whose threads are goroutines. Priorities are
// validated and recorded but scheduling is left to the Go runtime.
type Sim struct {
	id      uuid.UUID
	cfg     SimConfig
	logger  *zap.Logger
	tick    time.Duration
	boot    time.Time
	root    *Thread
	irq     sync.Mutex
	running sync.WaitGroup
	liveMu  sync.Mutex
	live    map[*Thread]struct{} // Protected by liveMu
	baseCtx context.Context
}

// NewSim boots a kernel. The calling goroutine becomes the bootstrap thread.
func NewSim(cfg SimConfig) *Sim {
	if cfg.TickPerSecond == 0 {
		cfg.TickPerSecond = DefaultTickPerSecond
	}
	if cfg.PriorityMax <= 0 {
		cfg.PriorityMax = DefaultPriorityMax
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Sim{
		id:      uuid.New(),
		cfg:     cfg,
		tick:    time.Second / time.Duration(cfg.TickPerSecond),
		boot:    time.Now(),
		live:    make(map[*Thread]struct{}),
		baseCtx: context.Background(),
	}
	s.logger = logger.With(zap.String("kernel", s.id.String()))

	s.root = newThread(nil, ThreadSpec{Name: "main", Priority: cfg.PriorityMax / 2})
	s.root.state.Store(int32(ThreadReady))

	s.logger.Debug("Kernel booted",
		zap.Uint32("tick_per_second", cfg.TickPerSecond),
		zap.Int("priority_max", cfg.PriorityMax))
	return s
}

// ID returns the boot identifier of this kernel instance.
func (s *Sim) ID() uuid.UUID {
	return s.id
}

// Root returns the bootstrap thread.
func (s *Sim) Root() *Thread {
	return s.root
}

// PriorityMax returns the number of priority levels.
func (s *Sim) PriorityMax() int {
	return s.cfg.PriorityMax
}

// Self returns the thread carried by ctx, or the bootstrap thread.
func (s *Sim) Self(ctx context.Context) *Thread {
	if ctx != nil {
		if t, ok := ctx.Value(threadKey{}).(*Thread); ok {
			return t
		}
	}
	return s.root
}

// WithThread returns a context identifying t as the running thread.
func WithThread(ctx context.Context, t *Thread) context.Context {
	return context.WithValue(ctx, threadKey{}, t)
}

// InitThread validates spec and builds a thread control block.
func (s *Sim) InitThread(tcb *heap.Block, spec ThreadSpec) (*Thread, error) {
	if tcb == nil {
		return nil, fmt.Errorf("%w: nil thread control block", ErrInvalid)
	}
	if spec.Entry == nil {
		return nil, fmt.Errorf("%w: nil entry", ErrInvalid)
	}
	if spec.Priority < 0 || spec.Priority >= s.cfg.PriorityMax {
		return nil, fmt.Errorf("%w: priority %d outside [0, %d)", ErrInvalid, spec.Priority, s.cfg.PriorityMax)
	}
	if spec.Stack == nil || spec.StackSize > spec.Stack.Size() {
		return nil, fmt.Errorf("%w: stack of %d bytes cannot back %d", ErrInvalid, spec.Stack.Size(), spec.StackSize)
	}
	return newThread(tcb, spec), nil
}

// Startup schedules t.
func (s *Sim) Startup(t *Thread) error {
	if !t.state.CompareAndSwap(int32(ThreadInit), int32(ThreadReady)) {
		return fmt.Errorf("%w: cannot start thread %q in state %s", ErrState, t.name, t.State())
	}

	s.liveMu.Lock()
	s.live[t] = struct{}{}
	s.liveMu.Unlock()

	s.running.Add(1)
	go s.run(t)
	return nil
}

func (s *Sim) run(t *Thread) {
	defer s.running.Done()
	defer close(t.done)
	// A body that returns without detaching itself is detached here.
	defer s.DetachThread(t)

	t.spec.Entry(WithThread(s.baseCtx, t), t.spec.Arg)
}

// DetachThread closes t. It is safe to call more than once.
func (s *Sim) DetachThread(t *Thread) {
	if t == nil || t == s.root {
		return
	}
	if ThreadState(t.state.Swap(int32(ThreadClosed))) == ThreadClosed {
		return
	}

	s.liveMu.Lock()
	delete(s.live, t)
	s.liveMu.Unlock()

	s.logger.Debug("Thread detached", zap.String("thread", t.name))
}

// Live returns the number of started threads that are not yet detached.
func (s *Sim) Live() int {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	return len(s.live)
}

// Wait blocks until every started thread body has returned.
func (s *Sim) Wait() {
	s.running.Wait()
}

// InitMutex creates a mutex.
func (s *Sim) InitMutex(name string, flag IPCFlag) (*Mutex, error) {
	if flag != IPCFIFO && flag != IPCPrio {
		return nil, fmt.Errorf("%w: ipc flag %d", ErrInvalid, flag)
	}
	return &Mutex{name: name, flag: flag, tick: s.tick}, nil
}

// DetachMutex hands m back to the kernel; blocked waiters fail with
// ErrDetached.
func (s *Sim) DetachMutex(m *Mutex) {
	if m != nil {
		m.detach()
	}
}

// DisableInterrupts enters the global exclusive section. Sim does not
// support nesting.
func (s *Sim) DisableInterrupts() Level {
	s.irq.Lock()
	return 1
}

// EnableInterrupts leaves the exclusive section entered by DisableInterrupts.
func (s *Sim) EnableInterrupts(level Level) {
	if level != 0 {
		s.irq.Unlock()
	}
}

// TickGet returns ticks elapsed since boot.
func (s *Sim) TickGet() Tick {
	return Tick(time.Since(s.boot) / s.tick)
}

func (s *Sim) TickPerSecond() uint32 {
	return s.cfg.TickPerSecond
}

// Delay suspends the caller for the given number of ticks.
func (s *Sim) Delay(ticks Tick) {
	if ticks == 0 {
		return
	}
	time.Sleep(time.Duration(ticks) * s.tick)
}

var _ Kernel = (*Sim)(nil)
