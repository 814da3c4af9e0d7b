package aio

import "errors"

var (
	// ErrTaskAborted is the terminal result of a task cancelled via
	// [Handle.Abort] before it completed.
	ErrTaskAborted = errors.New("aio: task aborted")

	// ErrTimeout is reported by [Timeout] when the deadline elapses before
	// the wrapped future completes.
	ErrTimeout = errors.New("aio: timeout elapsed")

	// ErrShutdown is the terminal result of tasks still pending when the
	// runtime shuts down, and of tasks spawned afterwards.
	ErrShutdown = errors.New("aio: runtime is shut down")

	// ErrIODisabled is returned when registering an I/O resource on a
	// runtime built with Config.DisableIO.
	ErrIODisabled = errors.New("aio: I/O driver is disabled")

	// ErrTimerDisabled is reported by timer futures on a runtime built with
	// Config.DisableTimer.
	ErrTimerDisabled = errors.New("aio: timer wheel is disabled")

	// ErrDeregistered is reported by I/O polls on a descriptor whose
	// registration was removed from the driver, by Close or at shutdown.
	ErrDeregistered = errors.New("aio: file descriptor deregistered")

	errFDRegistered = errors.New("aio: file descriptor already registered")
)
