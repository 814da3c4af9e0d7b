package aio

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Config controls runtime construction. The zero value gives a multi-worker
// runtime with I/O and timers enabled, the system clock, and discarded logs.
type Config struct {
	// Workers is the number of worker goroutines. 0 means GOMAXPROCS.
	// 1 gives the single-worker flavor: no stealing, identical semantics.
	Workers int

	// DisableIO builds the runtime without an I/O driver. Registering a
	// descriptor then fails with [ErrIODisabled].
	DisableIO bool

	// DisableTimer builds the runtime without a timer wheel. Timer futures
	// then fail with [ErrTimerDisabled].
	DisableTimer bool

	// Name tags the runtime's log records.
	Name string

	// Clock supplies time to the timer wheel. Defaults to the system
	// clock; tests install a [*ManualClock].
	Clock Clock

	// Logger receives runtime diagnostics. Defaults to discarding them.
	Logger *slog.Logger
}

// Runtime is one task execution engine: a work-stealing scheduler, an I/O
// driver and a timer wheel. Any number of runtimes coexist in a process;
// there is no ambient "current runtime", all coupling is explicit through
// the *Runtime handle or the poll [Context].
type Runtime struct {
	sched  *scheduler
	driver *driver
	wheel  *wheel
	clock  Clock
	manual bool
	log    *slog.Logger

	downOnce sync.Once
}

// New builds and starts a runtime. The caller owns it and must call
// [Runtime.Shutdown] when done.
func New(cfg Config) (*Runtime, error) {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Name != "" {
		logger = logger.With("runtime", cfg.Name)
	}

	rt := &Runtime{clock: clock, log: logger}
	_, rt.manual = clock.(*ManualClock)
	if !cfg.DisableTimer {
		rt.wheel = newWheel(clock.Now())
	}
	if !cfg.DisableIO {
		d, err := newDriver()
		if err != nil {
			return nil, fmt.Errorf("aio: starting I/O driver: %w", err)
		}
		rt.driver = d
	}
	rt.sched = newScheduler(rt, workers)
	if mc, ok := clock.(*ManualClock); ok {
		mc.bind(rt.onClockAdvance)
	}
	rt.sched.start()
	rt.log.Debug("runtime started",
		"workers", workers, "io", !cfg.DisableIO, "timers", !cfg.DisableTimer)
	return rt, nil
}

// Spawn submits f to rt as a new task and returns its [Handle]. The task
// starts queued; dropping the handle detaches it without cancelling it.
// Spawning on a shut-down runtime yields a handle already failed with
// [ErrShutdown].
func Spawn[T any](rt *Runtime, f Future[T]) *Handle[T] {
	t := newTask(rt, eraseFuture[T]{inner: f})
	if !rt.sched.submit(t) {
		rt.sched.discard(t)
	}
	return &Handle[T]{cell: t}
}

// eraseFuture adapts a Future[T] to the Future[any] the scheduler runs,
// forwarding Cleanup so cancellation still releases registrations.
type eraseFuture[T any] struct {
	inner Future[T]
}

func (e eraseFuture[T]) Poll(cx *Context) Poll[any] {
	p := e.inner.Poll(cx)
	if !p.Ready {
		return Pending[any]()
	}
	return Ready[any](p.Value)
}

func (e eraseFuture[T]) Cleanup() {
	if c, ok := e.inner.(Cleanup); ok {
		c.Cleanup()
	}
}

// Shutdown stops the workers, fails every task still queued with
// [ErrShutdown] (running their cleanups), and closes the I/O driver.
// Suspended tasks are discarded without completing. Shutdown is idempotent;
// calling it from inside a task deadlocks.
func (rt *Runtime) Shutdown() {
	rt.downOnce.Do(func() {
		tasks := rt.sched.stop()
		for _, t := range tasks {
			rt.sched.discard(t)
		}
		if rt.driver != nil {
			rt.driver.close()
		}
		rt.log.Debug("runtime stopped", "discarded", len(tasks))
	})
}

// Clock returns the clock the runtime was built with.
func (rt *Runtime) Clock() Clock { return rt.clock }

func (rt *Runtime) onClockAdvance() {
	rt.processTimers()
	rt.sched.kick()
}

// processTimers delivers every timer due at the current clock reading.
func (rt *Runtime) processTimers() {
	if rt.wheel == nil {
		return
	}
	for _, w := range rt.wheel.advance(rt.clock.Now()) {
		w.Wake()
	}
}

// timerScheduled nudges a parked worker after a timer insert so somebody
// re-parks against the new, possibly earlier, deadline.
func (rt *Runtime) timerScheduled() {
	rt.sched.unparkOne()
}

// parkTimeout bounds a worker's sleep by the next timer deadline. Under a
// manual clock timers are delivered by Advance, so only the defensive cap
// applies.
func (rt *Runtime) parkTimeout() time.Duration {
	if rt.wheel == nil || rt.manual {
		return maxParkTime
	}
	d, ok := rt.wheel.nextDeadline(rt.clock.Now())
	if !ok || d > maxParkTime {
		return maxParkTime
	}
	return d
}
