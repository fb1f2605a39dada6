package port

import (
	"context"
	"testing"
	"time"
	"unsafe"

	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/threadport/internal/heap"
	"github.com/GriffinCanCode/threadport/internal/infrastructure/config"
	"github.com/GriffinCanCode/threadport/internal/rtos"
)

const mainStackWords = 256

func testThreadConfig() config.ThreadConfig {
	cfg := config.Default().Thread
	cfg.DeinitGrace = 10 * time.Millisecond
	return cfg
}

func newTestPort(t *testing.T, opts ...Option) (*Port, *rtos.Sim) {
	t.Helper()

	sim := rtos.NewSim(rtos.DefaultSimConfig())
	stack := heap.Wrap(make([]uintptr, mainStackWords))

	opts = append([]Option{WithThreadConfig(testThreadConfig())}, opts...)
	p, err := Init(context.Background(), sim, stack, opts...)
	require.NoError(t, err)
	return p, sim
}

// worker is a thread body that can be paused between Start and Finish.
type worker struct {
	started  chan struct{}
	release  chan struct{}
	finished chan bool
	ctx      context.Context
}

func newWorker() *worker {
	return &worker{
		started:  make(chan struct{}),
		release:  make(chan struct{}),
		finished: make(chan bool, 1),
	}
}

func (w *worker) entry(p *Port, callStart bool) Entry {
	return func(ctx context.Context, _ unsafe.Pointer) {
		if callStart {
			p.Start(ctx)
		}
		w.ctx = ctx
		close(w.started)
		<-w.release
		w.finished <- p.Finish(ctx)
	}
}

func (w *worker) waitStarted(t *testing.T) {
	t.Helper()
	select {
	case <-w.started:
	case <-time.After(time.Second):
		t.Fatal("worker did not start")
	}
}

func (w *worker) finish(t *testing.T) bool {
	t.Helper()
	close(w.release)
	select {
	case ok := <-w.finished:
		return ok
	case <-time.After(time.Second):
		t.Fatal("worker did not finish")
		return false
	}
}

func roundWords(n uintptr) uintptr {
	return (n + heap.WordSize - 1) / heap.WordSize * heap.WordSize
}

func newSimAndStack() (*rtos.Sim, *heap.Block) {
	return rtos.NewSim(rtos.DefaultSimConfig()), heap.Wrap(make([]uintptr, mainStackWords))
}
