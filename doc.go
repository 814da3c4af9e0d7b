// Package aio implements an asynchronous task execution engine: tasks are
// poll-based futures multiplexed onto a small pool of worker goroutines,
// with readiness-driven I/O and hashed-wheel timers.
//
// A task suspends by returning [Pending] after arranging for its [Waker] to
// fire; it never blocks its worker. Suspended tasks cost only memory, so a
// runtime comfortably carries far more tasks than goroutines.
//
// Runtimes are explicit values. There is no ambient "current runtime":
// everything a future needs arrives through the poll [Context], and
// independent runtimes coexist in one process without touching each other.
//
// Subpackages mpsc, oneshot, broadcast and watch provide channels whose
// operations follow the same poll contract.
package aio
