package blockpool

import (
	"sync/atomic"
	"unsafe"

	"github.com/ajitpratap0/blockpool/pkg/errors"
)

// nilIndex terminates the live list.
const nilIndex int32 = -1

// poolIDs tags handles with the pool that issued them.
var poolIDs atomic.Uint32

type blockState uint8

const (
	// stateVacant: the slot's block was released to the Allocator; the slot may be reused.
	stateVacant blockState = iota
	// stateLive: linked into the live list and owned by a caller.
	stateLive
	// stateCached: sitting in the free cache.
	stateCached
	// stateDetached: unlinked by a Fail-policy overflow; freed only by Close.
	stateDetached
)

// slot is the metadata of one block. The payload lives behind value.
type slot[T any] struct {
	next, prev int32
	gen        uint32
	state      blockState
	value      *T
}

// Handle refers to one live block of a pool. The zero Handle is never valid.
type Handle struct {
	pool  uint32
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.gen == 0
}

// Pool is a fixed-object-size pool of T blocks. See the package documentation
// for the cache, live-list and overflow semantics. A Pool is not safe for
// concurrent use; see Locked.
type Pool[T any] struct {
	id    uint32
	cfg   Config
	size  uintptr
	alloc Allocator[T]

	slots  []slot[T]
	vacant []int32
	free   []int32
	byPtr  map[*T]int32

	head, tail int32
	live       int
	detached   int
	closed     bool

	stats Stats
}

// New creates a pool backed by the Go heap.
//
// Example:
//
//	p := blockpool.New[Record](
//	    blockpool.WithMaxCachedFrees(512),
//	    blockpool.WithOverflowPolicy(blockpool.Fail),
//	)
//	defer p.Close()
func New[T any](opts ...Option) *Pool[T] {
	return NewWithAllocator[T](HeapAllocator[T]{}, opts...)
}

// NewWithAllocator creates a pool that draws blocks from alloc.
// A nil alloc uses HeapAllocator.
func NewWithAllocator[T any](alloc Allocator[T], opts ...Option) *Pool[T] {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxCachedFrees < 0 {
		cfg.MaxCachedFrees = 0
	}
	if alloc == nil {
		alloc = HeapAllocator[T]{}
	}

	var zero T
	p := &Pool[T]{
		id:    poolIDs.Add(1),
		cfg:   cfg,
		size:  unsafe.Sizeof(zero),
		alloc: alloc,
		free:  make([]int32, 0, min(cfg.MaxCachedFrees, 4096)),
		head:  nilIndex,
		tail:  nilIndex,
	}
	if p.size > 0 {
		p.byPtr = make(map[*T]int32)
	}
	return p
}

// Size returns the size in bytes of one pooled instance.
func (p *Pool[T]) Size() uintptr {
	return p.size
}

// Name returns the configured pool name.
func (p *Pool[T]) Name() string {
	return p.cfg.Name
}

// Config returns the configuration the pool was built with.
func (p *Pool[T]) Config() Config {
	return p.cfg
}

// Acquire hands out one block. size must equal Size.
//
// The free cache is consulted first, most recently released block on top. On
// a miss the Allocator is asked for a new block; if it fails the error wraps
// ErrOutOfMemory and the pool is left unchanged. The returned block is linked
// at the tail of the live list and its payload content is unspecified.
func (p *Pool[T]) Acquire(size uintptr) (Handle, error) {
	if p.closed {
		return Handle{}, closedError("acquire")
	}
	if size != p.size {
		return Handle{}, sizeMismatch(size, p.size)
	}

	var idx int32
	if n := len(p.free); n > 0 {
		idx = p.free[n-1]
		p.free = p.free[:n-1]
		p.stats.Hits++
	} else {
		v, err := p.alloc.Allocate(p.size)
		if err != nil {
			return Handle{}, errors.Wrap(err, errors.ErrorTypeOutOfMemory, "system allocator could not satisfy request").
				WithDetail("size", p.size)
		}
		if v == nil {
			return Handle{}, errors.New(errors.ErrorTypeOutOfMemory, "system allocator returned no block").
				WithDetail("size", p.size)
		}
		idx = p.track(v)
		p.stats.Misses++
		p.stats.SystemAllocs++
	}

	s := &p.slots[idx]
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.state = stateLive
	p.linkTail(idx)
	p.live++
	p.stats.Acquires++

	return p.handle(idx), nil
}

// Pointer resolves a live handle to its payload.
func (p *Pool[T]) Pointer(h Handle) (*T, error) {
	if p.closed {
		return nil, closedError("pointer")
	}
	idx, err := p.lookup(h)
	if err != nil {
		return nil, err
	}
	return p.slots[idx].value, nil
}

// Release gives a live block back to the pool.
//
// The block is unlinked from the live list and pushed onto the free cache
// without touching its payload. If the cache already holds MaxCachedFrees
// blocks, ReturnToSystem frees the block through the Allocator and Release
// succeeds; Fail returns an error wrapping ErrCapacityExceeded.
func (p *Pool[T]) Release(h Handle) error {
	if p.closed {
		return closedError("release")
	}
	idx, err := p.lookup(h)
	if err != nil {
		return err
	}
	return p.release(idx, nil)
}

// ReleasePointer releases the live block whose payload is ptr. It is the
// pointer-based counterpart of Release for host types that only keep *T.
// Pools of zero-sized types cannot tell payload pointers apart and reject it.
func (p *Pool[T]) ReleasePointer(ptr *T) error {
	return p.DeleteFunc(ptr, nil)
}

// DeleteFunc releases the live block whose payload is ptr and runs destruct
// on the payload just before the block is unlinked. destruct is skipped when
// ptr is not a live block of this pool and when a strict Fail-policy release
// is rejected, so it never touches a block owned by someone else. destruct
// must not call back into the pool.
func (p *Pool[T]) DeleteFunc(ptr *T, destruct func(*T)) error {
	if p.closed {
		return closedError("release")
	}
	idx, err := p.lookupPointer(ptr)
	if err != nil {
		return err
	}
	return p.release(idx, destruct)
}

// New acquires a block and returns its payload, like operator new.
func (p *Pool[T]) New() (*T, error) {
	h, err := p.Acquire(p.size)
	if err != nil {
		return nil, err
	}
	return p.slots[h.index].value, nil
}

// Delete releases the block whose payload is ptr, like operator delete.
func (p *Pool[T]) Delete(ptr *T) error {
	return p.ReleasePointer(ptr)
}

// Close tears the pool down. Cached blocks are returned to the Allocator
// first, then every block still on the live list from head to tail, then any
// blocks detached by Fail-policy overflows. The pool runs no finalizer on the
// payloads. Close is idempotent; every other operation fails afterwards.
func (p *Pool[T]) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	for len(p.free) > 0 {
		n := len(p.free) - 1
		idx := p.free[n]
		p.free = p.free[:n]
		p.freeBlock(idx)
	}

	for idx := p.head; idx != nilIndex; {
		next := p.slots[idx].next
		p.freeBlock(idx)
		idx = next
	}
	p.head, p.tail = nilIndex, nilIndex
	p.live = 0

	if p.detached > 0 {
		for i := range p.slots {
			if p.slots[i].state == stateDetached {
				p.freeBlock(int32(i))
			}
		}
		p.detached = 0
	}

	p.slots = nil
	p.vacant = nil
	p.byPtr = nil
	return nil
}

// Closed reports whether Close has been called.
func (p *Pool[T]) Closed() bool {
	return p.closed
}

// Len returns the number of live blocks.
func (p *Pool[T]) Len() int {
	return p.live
}

// Cached returns the number of blocks in the free cache.
func (p *Pool[T]) Cached() int {
	return len(p.free)
}

// Detached returns the number of blocks dropped by Fail-policy overflows that
// are still waiting for Close.
func (p *Pool[T]) Detached() int {
	return p.detached
}

// Live returns handles to every live block walking the live list head to tail.
func (p *Pool[T]) Live() []Handle {
	out := make([]Handle, 0, p.live)
	for idx := p.head; idx != nilIndex; idx = p.slots[idx].next {
		out = append(out, p.handle(idx))
	}
	return out
}

// LiveReverse walks the live list tail to head.
func (p *Pool[T]) LiveReverse() []Handle {
	out := make([]Handle, 0, p.live)
	for idx := p.tail; idx != nilIndex; idx = p.slots[idx].prev {
		out = append(out, p.handle(idx))
	}
	return out
}

// Stats returns a snapshot of the pool counters.
func (p *Pool[T]) Stats() Stats {
	st := p.stats
	st.Live = p.live
	st.Cached = len(p.free)
	st.Detached = p.detached
	st.MaxCachedFrees = p.cfg.MaxCachedFrees
	st.Policy = p.cfg.OverflowPolicy
	return st
}

// release unlinks a live block and caches or frees it. destruct, if set, runs
// once the release is known not to be rejected up front.
func (p *Pool[T]) release(idx int32, destruct func(*T)) error {
	full := len(p.free) >= p.cfg.MaxCachedFrees
	if full && p.cfg.OverflowPolicy == Fail && p.cfg.StrictOverflow {
		p.stats.Rejections++
		return p.capacityExceeded(idx)
	}

	if destruct != nil {
		destruct(p.slots[idx].value)
	}
	p.unlink(idx)
	p.live--
	p.stats.Releases++
	s := &p.slots[idx]

	if !full {
		s.state = stateCached
		p.free = append(p.free, idx)
		return nil
	}

	p.stats.Overflows++
	if p.cfg.OverflowPolicy == Fail {
		s.state = stateDetached
		p.detached++
		p.stats.Rejections++
		return p.capacityExceeded(idx)
	}
	p.freeBlock(idx)
	return nil
}

func (p *Pool[T]) capacityExceeded(idx int32) error {
	return errors.New(errors.ErrorTypeCapacityExceeded, "free cache is full").
		WithDetail("max_cached_frees", p.cfg.MaxCachedFrees).
		WithDetail("index", idx).
		WithDetail("detached", !p.cfg.StrictOverflow)
}

func (p *Pool[T]) handle(idx int32) Handle {
	return Handle{pool: p.id, index: uint32(idx), gen: p.slots[idx].gen}
}

// lookup validates that h names a live block of this pool.
func (p *Pool[T]) lookup(h Handle) (int32, error) {
	if h.pool != p.id {
		return 0, invalidRelease("handle belongs to another pool", h)
	}
	if h.gen == 0 || uint64(h.index) >= uint64(len(p.slots)) {
		return 0, invalidRelease("unknown handle", h)
	}
	idx := int32(h.index)
	s := &p.slots[idx]
	if s.gen != h.gen || s.state != stateLive {
		return 0, invalidRelease("block is not live", h)
	}
	return idx, nil
}

// lookupPointer validates that ptr is the payload of a live block of this pool.
func (p *Pool[T]) lookupPointer(ptr *T) (int32, error) {
	if p.byPtr == nil {
		return 0, errors.New(errors.ErrorTypeValidation, "pointer release needs a non-zero-sized type")
	}
	if ptr == nil {
		return 0, errors.New(errors.ErrorTypeInvalidRelease, "nil pointer")
	}
	idx, ok := p.byPtr[ptr]
	if !ok {
		return 0, errors.New(errors.ErrorTypeInvalidRelease, "pointer not owned by pool")
	}
	if p.slots[idx].state != stateLive {
		return 0, invalidRelease("block is not live", p.handle(idx))
	}
	return idx, nil
}

// track records a freshly allocated block in a slot, reusing a vacant one if possible.
func (p *Pool[T]) track(v *T) int32 {
	var idx int32
	if n := len(p.vacant); n > 0 {
		idx = p.vacant[n-1]
		p.vacant = p.vacant[:n-1]
		s := &p.slots[idx]
		s.value = v
	} else {
		idx = int32(len(p.slots))
		p.slots = append(p.slots, slot[T]{value: v, next: nilIndex, prev: nilIndex})
	}
	if p.byPtr != nil {
		p.byPtr[v] = idx
	}
	return idx
}

// freeBlock returns a block to the Allocator and vacates its slot. The caller
// has already removed the block from the live list or the free cache.
func (p *Pool[T]) freeBlock(idx int32) {
	s := &p.slots[idx]
	v := s.value
	if p.byPtr != nil {
		delete(p.byPtr, v)
	}
	s.value = nil
	s.state = stateVacant
	s.next, s.prev = nilIndex, nilIndex
	p.vacant = append(p.vacant, idx)
	p.alloc.Free(v)
	p.stats.SystemFrees++
}

func (p *Pool[T]) linkTail(idx int32) {
	s := &p.slots[idx]
	s.next = nilIndex
	s.prev = p.tail
	if p.tail == nilIndex {
		p.head = idx
	} else {
		p.slots[p.tail].next = idx
	}
	p.tail = idx
}

func (p *Pool[T]) unlink(idx int32) {
	s := &p.slots[idx]
	if s.prev != nilIndex {
		p.slots[s.prev].next = s.next
	} else {
		p.head = s.next
	}
	if s.next != nilIndex {
		p.slots[s.next].prev = s.prev
	} else {
		p.tail = s.prev
	}
	s.next, s.prev = nilIndex, nilIndex
}
