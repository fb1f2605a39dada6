package port

import (
	"context"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/threadport/internal/gc"
)

// CollectRoots reports every thread's roots to r. Each node's kernel handle
// and start argument are always reported. Its stack is reported only when
// the thread is ready, since a thread that has not started may hold
// uninitialised memory there, and never for the calling thread, whose stack
// the collector scans itself.
//
// The registry lock is held while r runs; r must not create or finish
// threads. Deinit may detach threads during a scan; their nodes stay valid
// until the scan returns.
func (p *Port) CollectRoots(ctx context.Context, r gc.Reporter) {
	if p.closed.Load() {
		return
	}
	start := time.Now()
	self := p.kernel.Self(ctx)

	if !p.lock.Lock(true) {
		return
	}

	var threads, stacks int
	var words uintptr
	for _, n := range p.snapshot() {
		threads++
		r.ReportRoots(gc.Range{Kind: gc.RootHandle, Base: unsafe.Pointer(&n.handle), Words: 1, Thread: n.name})
		r.ReportRoots(gc.Range{Kind: gc.RootArg, Base: unsafe.Pointer(&n.arg), Words: 1, Thread: n.name})

		if n.handle == self || !n.ready || n.stackLen == 0 {
			continue
		}
		r.ReportRoots(gc.Range{Kind: gc.RootStack, Base: n.stack.Base(), Words: n.stackLen, Thread: n.name})
		stacks++
		words += n.stackLen
	}

	p.lock.Unlock()

	p.metrics.RecordScan(start)
	p.metrics.RootsReported.WithLabelValues(gc.RootHandle.String()).Add(float64(threads))
	p.metrics.RootsReported.WithLabelValues(gc.RootArg.String()).Add(float64(threads))
	p.metrics.RootsReported.WithLabelValues(gc.RootStack.String()).Add(float64(stacks))

	p.scanLog.Do(func() {
		p.logger.Debug("Roots collected",
			zap.String("caller", self.Name()),
			zap.Int("threads", threads),
			zap.Int("stacks", stacks),
			zap.Uintptr("stack_words", words),
			zap.Duration("took", time.Since(start)))
	})
}
