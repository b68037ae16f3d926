// Package worker runs submitted functions asynchronously, one at a time,
// on a single dedicated goroutine, in the order they were submitted.
package worker

import (
	"sync"

	"github.com/grailbio/base/errors"
)

// Future is returned by Async; Wait blocks until the task has run and
// yields its result.
type Future struct {
	done   chan struct{}
	result interface{}
	err    error
}

// Wait blocks until the task completes and returns its result.
func (f *Future) Wait() (interface{}, error) {
	<-f.done
	return f.result, f.err
}

type task struct {
	fn     func() (interface{}, error)
	future *Future
}

// Worker is a FIFO task queue drained by exactly one goroutine.
type Worker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []task
	stopped bool
	done    chan struct{}
}

// New starts a worker goroutine. name is used only for diagnostics.
func New(name string) *Worker {
	w := &Worker{done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Async queues fn to run on the worker goroutine and returns immediately
// with a Future for its result. Async never blocks. It fails if the
// worker has already been told to Stop.
func (w *Worker) Async(fn func() (interface{}, error)) (*Future, error) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil, errors.E("worker: worker is already stopping")
	}
	future := &Future{done: make(chan struct{})}
	w.queue = append(w.queue, task{fn: fn, future: future})
	w.mu.Unlock()

	w.cond.Signal()
	return future, nil
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.stopped {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		t := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		result, err := t.fn()
		t.future.result = result
		t.future.err = err
		close(t.future.done)
	}
}

// Stop signals the worker to reject further Async calls, waits for all
// already-queued tasks to drain, and then returns.
func (w *Worker) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.mu.Unlock()
	w.cond.Broadcast()
	<-w.done
}
