package port

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/threadport/internal/heap"
)

func TestMutexInitRegisters(t *testing.T) {
	p, _ := newTestPort(t)

	var a, b Mutex
	require.NoError(t, p.MutexInit(&a))
	require.NoError(t, p.MutexInit(&b))

	assert.Equal(t, 3, p.Mutexes())
	assert.NotEqual(t, a.Name(), b.Name())
	assert.Equal(t, "mpm01", a.Name())
	assert.Equal(t, 3.0, testutil.ToFloat64(p.Metrics().MutexesRegistered))
}

func TestMutexLockNonBlocking(t *testing.T) {
	p, _ := newTestPort(t)

	var m Mutex
	require.NoError(t, p.MutexInit(&m))

	assert.True(t, m.Lock(false))
	assert.False(t, m.Lock(false))

	m.Unlock()
	assert.True(t, m.Lock(false))
	m.Unlock()
}

func TestMutexLockBlocking(t *testing.T) {
	p, _ := newTestPort(t)

	var m Mutex
	require.NoError(t, p.MutexInit(&m))
	require.True(t, m.Lock(true))

	acquired := make(chan bool, 1)
	go func() {
		acquired <- m.Lock(true)
	}()

	select {
	case <-acquired:
		t.Fatal("blocking lock returned while held")
	case <-time.After(20 * time.Millisecond):
	}

	m.Unlock()
	assert.True(t, <-acquired)
	m.Unlock()
}

func TestUninitializedMutex(t *testing.T) {
	var m Mutex

	assert.False(t, m.Lock(true))
	assert.False(t, m.Lock(false))
	m.Unlock()
}

func TestMutexInitOutOfMemory(t *testing.T) {
	sys := heap.New(heap.Unlimited)
	p, _ := newTestPort(t, WithSystemHeap(sys))

	sys.SetLimit(sys.InUse())

	var m Mutex
	err := p.MutexInit(&m)
	require.ErrorIs(t, err, ErrOutOfMemory)
	assert.Contains(t, err.Error(), "can't create mutex list node")
	assert.Equal(t, 1, p.Mutexes())
	assert.False(t, m.Lock(false))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.Metrics().AllocFailures.WithLabelValues("mutex_node")))

	// Interrupts were restored on the failure path.
	sys.SetLimit(heap.Unlimited)
	require.NoError(t, p.MutexInit(&m))
	assert.Equal(t, 2, p.Mutexes())
}

func TestInitFailsWithoutSystemMemory(t *testing.T) {
	sys := heap.New(1)
	sim, stack := newSimAndStack()

	_, err := Init(context.Background(), sim, stack, WithSystemHeap(sys))
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestDeinitLogsMutexNodeFreeFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sys := heap.New(heap.Unlimited)
	p, _ := newTestPort(t, WithSystemHeap(sys), WithLogger(zap.New(core)))

	var m Mutex
	require.NoError(t, p.MutexInit(&m))

	// Release the node behind the port's back so Deinit double-frees it.
	require.NoError(t, sys.Free(p.mutexes[1].mem))

	p.Deinit()

	failures := logs.FilterMessage("Failed to free mutex node").All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.ErrorLevel, failures[0].Level)
	assert.Equal(t, m.Name(), failures[0].ContextMap()["mutex"])
	assert.Zero(t, sys.InUse())
	assert.Zero(t, p.Mutexes())
}
