package pool

import (
	"sync"
	"sync/atomic"

	"github.com/ajitpratap0/blockpool/pkg/blockpool"
)

// Pool represents a generic object pool with type safety.
// It wraps sync.Pool with statistics tracking and automatic reset
// functionality. The pool is safe for concurrent use.
//
// Unlike blockpool.Pool, objects put back may be reclaimed by the garbage
// collector at any time, so there is no bound on cached objects and no
// teardown.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
	stats struct {
		gets      int64
		allocated int64
		inUse     int64
	}
}

// New creates a new typed pool with custom allocation and reset functions.
// The new function is called when the pool is empty and a new object is needed.
// The reset function, if not nil, is called before an object goes back to the pool.
//
// Example:
//
//	pool := New(
//	    func() *Buffer { return &Buffer{data: make([]byte, 0, 1024)} },
//	    func(b *Buffer) { b.data = b.data[:0] },
//	)
func New[T any](newFn func() T, reset func(T)) *Pool[T] {
	p := &Pool[T]{
		reset: reset,
	}
	p.pool.New = func() interface{} {
		atomic.AddInt64(&p.stats.allocated, 1)
		return newFn()
	}
	return p
}

// Get retrieves an object from the pool, creating one if the pool is empty.
func (p *Pool[T]) Get() T {
	atomic.AddInt64(&p.stats.gets, 1)
	atomic.AddInt64(&p.stats.inUse, 1)
	return p.pool.Get().(T)
}

// Put returns an object to the pool for reuse.
func (p *Pool[T]) Put(obj T) {
	if p.reset != nil {
		p.reset(obj)
	}
	atomic.AddInt64(&p.stats.inUse, -1)
	p.pool.Put(obj)
}

// Stats represents pool statistics for monitoring and optimization.
type Stats struct {
	// Allocated is the total number of objects created by the pool
	Allocated int64 `json:"allocated"`
	// InUse is the current number of objects checked out from the pool
	InUse int64 `json:"in_use"`
	// Hits is the number of retrievals served by a recycled object
	Hits int64 `json:"hits"`
	// Misses is the number of times a new object had to be created
	Misses int64 `json:"misses"`
}

// Stats returns current pool statistics.
func (p *Pool[T]) Stats() Stats {
	gets := atomic.LoadInt64(&p.stats.gets)
	allocated := atomic.LoadInt64(&p.stats.allocated)
	return Stats{
		Allocated: allocated,
		InUse:     atomic.LoadInt64(&p.stats.inUse),
		Hits:      gets - allocated,
		Misses:    allocated,
	}
}

// Allocator adapts a Pool of *T into a blockpool.Allocator, so a blockpool
// can fall back to sync.Pool recycling instead of the heap on a cache miss.
type Allocator[T any] struct {
	pool *Pool[*T]
}

var _ blockpool.Allocator[int] = (*Allocator[int])(nil)

// NewAllocator creates an Allocator backed by a fresh Pool.
func NewAllocator[T any]() *Allocator[T] {
	return &Allocator[T]{
		pool: New(func() *T { return new(T) }, nil),
	}
}

// Allocate implements blockpool.Allocator.
func (a *Allocator[T]) Allocate(uintptr) (*T, error) {
	return a.pool.Get(), nil
}

// Free implements blockpool.Allocator.
func (a *Allocator[T]) Free(p *T) {
	if p != nil {
		a.pool.Put(p)
	}
}

// Stats returns the statistics of the underlying Pool.
func (a *Allocator[T]) Stats() Stats {
	return a.pool.Stats()
}
