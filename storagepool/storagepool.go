// Package storagepool implements a bounded pool of preallocated slots:
// allocation is meant for a single producer goroutine, while
// deallocation (returning a slot via Handle.Release) is safe from any
// number of goroutines.
package storagepool

import (
	"sync/atomic"

	"github.com/grailbio/base/errors"
)

// Pool hands out values from a fixed-size preallocated set. Once every
// slot is checked out, Allocate fails rather than growing the pool.
type Pool struct {
	free chan interface{}
}

// New preallocates size slots, each produced by calling newSlot once.
func New(size int, newSlot func() interface{}) *Pool {
	p := &Pool{free: make(chan interface{}, size)}
	for i := 0; i < size; i++ {
		p.free <- newSlot()
	}
	return p
}

// Allocate checks out a slot, or fails if the pool is exhausted.
func (p *Pool) Allocate() (*Handle, error) {
	select {
	case v := <-p.free:
		return &Handle{value: v, pool: p}, nil
	default:
		return nil, errors.E("storagepool: pool exhausted")
	}
}

// Handle owns one checked-out slot. Release must be called exactly once
// to return it to the pool; later calls are no-ops.
type Handle struct {
	value    interface{}
	pool     *Pool
	released int32
}

// Value returns the underlying slot value.
func (h *Handle) Value() interface{} { return h.value }

// Release returns the slot to the pool. Safe to call from any goroutine,
// and safe to call more than once.
func (h *Handle) Release() {
	if atomic.CompareAndSwapInt32(&h.released, 0, 1) {
		h.pool.free <- h.value
	}
}
