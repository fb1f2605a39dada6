package port

import (
	"context"
	"testing"
	"unsafe"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/threadport/internal/gc"
	"github.com/GriffinCanCode/threadport/internal/heap"
)

func stackRanges(rec *gc.Recorder) []gc.Range {
	var out []gc.Range
	for _, r := range rec.Ranges() {
		if r.Kind == gc.RootStack {
			out = append(out, r)
		}
	}
	return out
}

func TestCollectRootsScenario(t *testing.T) {
	p, sim := newTestPort(t)
	ctx := context.Background()

	var argA int
	w := newWorker()
	size := uintptr(0)
	require.NoError(t, p.Create(ctx, w.entry(p, true), unsafe.Pointer(&argA), &size))
	assert.Equal(t, uintptr(6144-1024), size)
	w.waitStarted(t)

	threads := p.Threads()
	require.Len(t, threads, 2)
	assert.True(t, threads[0].Ready)
	assert.True(t, threads[1].Ready)

	var rec gc.Recorder
	p.CollectRoots(ctx, &rec)

	assert.Equal(t, 2, rec.Count(gc.RootHandle))
	assert.Equal(t, 2, rec.Count(gc.RootArg))

	stacks := stackRanges(&rec)
	require.Len(t, stacks, 1)
	assert.Equal(t, "mp00", stacks[0].Thread)
	assert.Equal(t, size/heap.WordSize, stacks[0].Words)
	assert.NotNil(t, stacks[0].Base)

	assert.True(t, w.finish(t))
	sim.Wait()
	assert.Len(t, p.Threads(), 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().RootScans))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().RootsReported.WithLabelValues("stack")))
}

func TestCollectRootsPointAtHandleAndArg(t *testing.T) {
	p, sim := newTestPort(t)
	ctx := context.Background()

	var arg int
	w := newWorker()
	size := uintptr(0)
	require.NoError(t, p.Create(ctx, w.entry(p, true), unsafe.Pointer(&arg), &size))
	w.waitStarted(t)

	var rec gc.Recorder
	p.CollectRoots(ctx, &rec)

	handle := p.Threads()[1].Handle
	var foundHandle, foundArg bool
	for _, r := range rec.Ranges() {
		if r.Thread != "mp00" {
			continue
		}
		switch r.Kind {
		case gc.RootHandle:
			foundHandle = true
			assert.Equal(t, uintptr(1), r.Words)
			assert.Equal(t, unsafe.Pointer(handle), *(*unsafe.Pointer)(r.Base))
		case gc.RootArg:
			foundArg = true
			assert.Equal(t, uintptr(1), r.Words)
			assert.Equal(t, unsafe.Pointer(&arg), *(*unsafe.Pointer)(r.Base))
		}
	}
	assert.True(t, foundHandle)
	assert.True(t, foundArg)

	assert.True(t, w.finish(t))
	sim.Wait()
}

func TestCollectRootsSkipsNotReady(t *testing.T) {
	p, sim := newTestPort(t)
	ctx := context.Background()

	w := newWorker()
	size := uintptr(0)
	require.NoError(t, p.Create(ctx, w.entry(p, false), nil, &size))
	w.waitStarted(t)

	var rec gc.Recorder
	p.CollectRoots(ctx, &rec)

	assert.Equal(t, 2, rec.Count(gc.RootHandle))
	assert.Equal(t, 2, rec.Count(gc.RootArg))
	assert.Empty(t, stackRanges(&rec))

	assert.True(t, w.finish(t))
	sim.Wait()
}

func TestCollectRootsFromWorkerSkipsOwnStack(t *testing.T) {
	p, sim := newTestPort(t)

	w := newWorker()
	size := uintptr(0)
	require.NoError(t, p.Create(context.Background(), w.entry(p, true), nil, &size))
	w.waitStarted(t)

	var rec gc.Recorder
	p.CollectRoots(w.ctx, &rec)

	stacks := stackRanges(&rec)
	require.Len(t, stacks, 1)
	assert.Equal(t, "main", stacks[0].Thread)
	assert.Equal(t, uintptr(mainStackWords), stacks[0].Words)

	assert.True(t, w.finish(t))
	sim.Wait()
}

func TestCollectRootsWithReporterFunc(t *testing.T) {
	p, _ := newTestPort(t)

	var kinds []gc.RootKind
	p.CollectRoots(context.Background(), gc.ReporterFunc(func(r gc.Range) {
		kinds = append(kinds, r.Kind)
	}))

	// Only main is registered and it is the caller.
	assert.Equal(t, []gc.RootKind{gc.RootHandle, gc.RootArg}, kinds)
}
