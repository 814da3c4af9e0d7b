package aio_test

import (
	"fmt"
	"time"

	"github.com/b97tsk/aio"
	"github.com/b97tsk/aio/mpsc"
	"github.com/b97tsk/aio/oneshot"
)

func Example() {
	// Create a runtime. It owns a pool of workers; tasks are futures
	// multiplexed onto them.
	rt, err := aio.New(aio.Config{Workers: 2})
	if err != nil {
		panic(err)
	}
	defer rt.Shutdown()

	// A oneshot channel carries a single value between two tasks.
	tx, rx := oneshot.Channel[string]()

	aio.Spawn(rt, aio.FutureFunc[struct{}](func(cx *aio.Context) aio.Poll[struct{}] {
		tx.Send("hello from a task")
		return aio.Ready(struct{}{})
	}))

	// BlockOn bridges synchronous code into the engine: it drives the
	// receiver future to completion on this goroutine.
	res := aio.BlockOn(rt, rx)
	fmt.Println(res.Value)
	// Output:
	// hello from a task
}

func Example_channel() {
	rt, err := aio.New(aio.Config{Workers: 2, DisableIO: true})
	if err != nil {
		panic(err)
	}
	defer rt.Shutdown()

	tx, rx := mpsc.Channel[int](4)

	// The producer runs as a task; the channel closes when it is done.
	aio.Spawn(rt, aio.FutureFunc[struct{}](func(cx *aio.Context) aio.Poll[struct{}] {
		for i := 1; i <= 3; i++ {
			if err := tx.TrySend(i * i); err != nil {
				panic(err)
			}
		}
		tx.Close()
		return aio.Ready(struct{}{})
	}))

	// The consumer drains the channel until the closed signal.
	for {
		r := aio.BlockOn(rt, rx.Recv())
		if !r.OK {
			break
		}
		fmt.Println(r.Value)
	}
	// Output:
	// 1
	// 4
	// 9
}

func ExampleTimeout() {
	mc := aio.NewManualClock(time.Unix(0, 0))
	rt, err := aio.New(aio.Config{Workers: 1, DisableIO: true, Clock: mc})
	if err != nil {
		panic(err)
	}
	defer rt.Shutdown()

	// A future that never completes, bounded by a 50ms deadline.
	stuck := aio.FutureFunc[int](func(cx *aio.Context) aio.Poll[int] {
		return aio.Pending[int]()
	})
	h := aio.Spawn(rt, aio.Timeout(50*time.Millisecond, stuck))

	for !h.Done() {
		mc.Advance(10 * time.Millisecond)
	}
	res, _ := h.Join()
	fmt.Println(res.Err)
	// Output:
	// aio: timeout elapsed
}
