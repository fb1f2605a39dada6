package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/threadport/internal/gc"
	"github.com/GriffinCanCode/threadport/internal/heap"
	"github.com/GriffinCanCode/threadport/internal/infrastructure/config"
	"github.com/GriffinCanCode/threadport/internal/infrastructure/logging"
	"github.com/GriffinCanCode/threadport/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/threadport/internal/port"
	"github.com/GriffinCanCode/threadport/internal/rtos"
)

// job is the argument handed to each worker thread.
type job struct {
	index   int
	roots   int
	counter *int
}

func main() {
	workers := flag.Int("workers", 4, "Number of worker threads")
	stackSize := flag.Uint64("stack", 0, "Requested worker stack size in bytes (0 for default)")
	mainStack := flag.Int("main-stack", 2048, "Bootstrap stack size in words")
	flag.Parse()

	cfg := config.LoadOrDefault()

	logger, err := logging.New(logging.FromEnv(cfg.Logging))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(logger, cfg, *workers, uintptr(*stackSize), *mainStack); err != nil {
		logger.Error("Simulation failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(logger *logging.Logger, cfg *config.Config, workers int, stackSize uintptr, mainStack int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kernel := rtos.NewSim(rtos.SimConfig{
		TickPerSecond: cfg.Kernel.TickPerSecond,
		PriorityMax:   cfg.Kernel.PriorityMax,
		Logger:        logger.Named("kernel"),
	})
	metrics := monitoring.NewMetrics()

	p, err := port.Init(ctx, kernel, heap.Wrap(make([]uintptr, mainStack)),
		port.WithLogger(logger.Named("port")),
		port.WithMetrics(metrics),
		port.WithThreadConfig(cfg.Thread),
		port.WithHeap(heap.New(uintptr(cfg.Heap.GCLimit))),
		port.WithSystemHeap(heap.New(uintptr(cfg.Heap.SystemLimit))),
	)
	if err != nil {
		return err
	}
	defer p.Deinit()

	var shared port.Mutex
	if err := p.MutexInit(&shared); err != nil {
		return err
	}

	counter := 0
	jobs := make([]job, workers)
	var finished sync.WaitGroup
	release := make(chan struct{})

	entry := func(tctx context.Context, arg unsafe.Pointer) {
		j := (*job)(arg)
		defer finished.Done()

		p.Start(tctx)
		if shared.Lock(true) {
			*j.counter++
			shared.Unlock()
		}

		var rec gc.Recorder
		p.CollectRoots(tctx, &rec)
		j.roots = len(rec.Ranges())

		select {
		case <-release:
		case <-tctx.Done():
		}
		p.Finish(tctx)
	}

	created := 0
	for i := range jobs {
		jobs[i] = job{index: i, counter: &counter}
		size := stackSize
		finished.Add(1)
		if err := p.Create(ctx, entry, unsafe.Pointer(&jobs[i]), &size); err != nil {
			finished.Done()
			logger.Warn("Worker not created", zap.Int("worker", i), zap.Error(err))
			continue
		}
		created++
		logger.Debug("Worker created", zap.Int("worker", i), zap.Uintptr("stack_bytes", size))
	}

	for _, info := range p.Threads() {
		logger.Debug("Registered thread",
			zap.String("id", info.ID.String()),
			zap.String("thread", info.Name),
			zap.Bool("main", info.Main),
			zap.Uintptr("stack_words", info.StackWords),
			zap.Duration("age", time.Since(info.Created)))
	}

	var rec gc.Recorder
	p.CollectRoots(ctx, &rec)
	logger.Info("Roots collected",
		zap.Int("threads", len(p.Threads())),
		zap.Int("handles", rec.Count(gc.RootHandle)),
		zap.Int("args", rec.Count(gc.RootArg)),
		zap.Int("stacks", rec.Count(gc.RootStack)),
		zap.Uintptr("words", rec.Words()))

	close(release)
	finished.Wait()

	for _, j := range jobs {
		logger.Debug("Worker scan", zap.Int("worker", j.index), zap.Int("ranges", j.roots))
	}

	shared.Lock(true)
	total := counter
	shared.Unlock()

	logger.Info("Simulation complete",
		zap.Int("created", created),
		zap.Int("increments", total),
		zap.Int("threads_left", len(p.Threads())),
		zap.Int("mutexes", p.Mutexes()),
		zap.String("kernel", kernel.ID().String()))

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("interrupted: %w", err)
	}
	return nil
}
