package aio

import (
	"fmt"
	"runtime/debug"
)

// A PanicError is the terminal result of a task whose future panicked while
// being polled. The panic is confined to the task: the worker that observed
// it keeps running, and only code awaiting the task's handle sees the error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("aio: task panicked: %v\n\n%s", e.Value, e.Stack)
}

// Unwrap returns the panic value if it was an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// tryPoll runs f, converting a panic into a *PanicError carrying the stack
// trace captured at the point of the panic.
func tryPoll(f func()) (pe *PanicError) {
	ok := false
	defer func() {
		if ok {
			return
		}
		v := recover()
		if v == nil {
			panic("aio: tasks must not call runtime.Goexit")
		}
		pe = &PanicError{Value: v, Stack: debug.Stack()}
	}()
	f()
	ok = true
	return nil
}
