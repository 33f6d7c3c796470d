package concurrency

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
)

// SafeGo runs a function in a goroutine with panic recovery.
func SafeGo(fn func(), onPanic func(interface{})) {
	go func() {
		defer recoverPanic("", onPanic)
		fn()
	}()
}

func recoverPanic(task string, onPanic func(interface{})) {
	if r := recover(); r != nil {
		stack := debug.Stack()
		slog.Error("Panic recovered", "task", task, "panic", r, "stack", string(stack))
		if onPanic != nil {
			onPanic(r)
		}
	}
}

// Tracker runs background tasks with panic recovery and lets shutdown wait for them.
type Tracker struct {
	wg sync.WaitGroup
}

// Go runs fn in a tracked goroutine. task names the work in panic logs.
func (t *Tracker) Go(task string, fn func()) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer recoverPanic(task, nil)
		fn()
	}()
}

// Wait blocks until every tracked task returns or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
