package blockpool

import (
	"fmt"
	"sync"
)

// Allocator is the system allocator a pool draws blocks from on a cache miss
// and returns them to on overflow or teardown. Each Allocate is one block.
type Allocator[T any] interface {
	// Allocate returns storage for one T. size is the pooled type's size.
	Allocate(size uintptr) (*T, error)

	// Free returns a block previously obtained from Allocate.
	Free(p *T)
}

// HeapAllocator allocates blocks from the Go heap.
// Free clears the block so the garbage collector can reclaim anything it references.
type HeapAllocator[T any] struct{}

// Allocate implements Allocator.
func (HeapAllocator[T]) Allocate(uintptr) (*T, error) {
	return new(T), nil
}

// Free implements Allocator.
func (HeapAllocator[T]) Free(p *T) {
	if p != nil {
		var zero T
		*p = zero
	}
}

// errAllocatorExhausted is returned by LimitedAllocator once its budget is spent.
var errAllocatorExhausted = fmt.Errorf("allocator: block budget exhausted")

// LimitedAllocator caps the number of outstanding blocks of an underlying Allocator.
// It models a system allocator that can run out of memory.
type LimitedAllocator[T any] struct {
	next        Allocator[T]
	maxBlocks   int
	outstanding int
}

// NewLimitedAllocator wraps next so that at most maxBlocks blocks are outstanding.
// A nil next uses HeapAllocator.
func NewLimitedAllocator[T any](next Allocator[T], maxBlocks int) *LimitedAllocator[T] {
	if next == nil {
		next = HeapAllocator[T]{}
	}
	return &LimitedAllocator[T]{next: next, maxBlocks: maxBlocks}
}

// Allocate implements Allocator.
func (a *LimitedAllocator[T]) Allocate(size uintptr) (*T, error) {
	if a.outstanding >= a.maxBlocks {
		return nil, errAllocatorExhausted
	}
	p, err := a.next.Allocate(size)
	if err != nil {
		return nil, err
	}
	a.outstanding++
	return p, nil
}

// Free implements Allocator.
func (a *LimitedAllocator[T]) Free(p *T) {
	a.outstanding--
	a.next.Free(p)
}

// Outstanding returns the number of blocks currently allocated.
func (a *LimitedAllocator[T]) Outstanding() int {
	return a.outstanding
}

// TrackingAllocator records every block it hands out and every block returned
// to it. It is safe for concurrent use so it can back a Locked pool.
type TrackingAllocator[T any] struct {
	next Allocator[T]

	mu           sync.Mutex
	live         map[*T]struct{}
	freed        map[*T]struct{}
	allocs       int
	frees        int
	doubleFrees  int
	foreignFrees int
}

// NewTrackingAllocator wraps next. A nil next uses HeapAllocator.
func NewTrackingAllocator[T any](next Allocator[T]) *TrackingAllocator[T] {
	if next == nil {
		next = HeapAllocator[T]{}
	}
	return &TrackingAllocator[T]{
		next:  next,
		live:  make(map[*T]struct{}),
		freed: make(map[*T]struct{}),
	}
}

// Allocate implements Allocator.
func (a *TrackingAllocator[T]) Allocate(size uintptr) (*T, error) {
	p, err := a.next.Allocate(size)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.live[p] = struct{}{}
	delete(a.freed, p)
	a.allocs++
	a.mu.Unlock()
	return p, nil
}

// Free implements Allocator. Blocks are forwarded to the wrapped allocator only once.
func (a *TrackingAllocator[T]) Free(p *T) {
	a.mu.Lock()
	if _, ok := a.live[p]; !ok {
		if _, ok := a.freed[p]; ok {
			a.doubleFrees++
		} else {
			a.foreignFrees++
		}
		a.mu.Unlock()
		return
	}
	delete(a.live, p)
	a.freed[p] = struct{}{}
	a.frees++
	a.mu.Unlock()
	a.next.Free(p)
}

// Allocs returns the number of blocks handed out.
func (a *TrackingAllocator[T]) Allocs() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocs
}

// Frees returns the number of blocks returned exactly once.
func (a *TrackingAllocator[T]) Frees() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frees
}

// DoubleFrees returns the number of frees of a block that was already returned.
func (a *TrackingAllocator[T]) DoubleFrees() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doubleFrees
}

// Outstanding returns the number of blocks allocated and not yet freed.
func (a *TrackingAllocator[T]) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Verify reports leaks, double frees, and frees of unknown blocks.
func (a *TrackingAllocator[T]) Verify() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.live); n > 0 {
		return fmt.Errorf("allocator: %d blocks leaked (%d allocated, %d freed)", n, a.allocs, a.frees)
	}
	if a.doubleFrees > 0 || a.foreignFrees > 0 {
		return fmt.Errorf("allocator: %d double frees, %d foreign frees", a.doubleFrees, a.foreignFrees)
	}
	return nil
}
