package blockpool

import (
	"math/rand"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/blockpool/pkg/errors"
)

type record struct {
	ID   int64
	Name string
	Tags []string
}

var recordSize = unsafe.Sizeof(record{})

func newTestPool(t *testing.T, opts ...Option) (*Pool[record], *TrackingAllocator[record]) {
	t.Helper()
	tracker := NewTrackingAllocator[record](nil)
	return NewWithAllocator[record](tracker, opts...), tracker
}

func acquireN(t *testing.T, p *Pool[record], n int) []Handle {
	t.Helper()
	hs := make([]Handle, n)
	for i := range hs {
		h, err := p.Acquire(recordSize)
		require.NoError(t, err)
		hs[i] = h
	}
	return hs
}

func pointerOf(t *testing.T, p *Pool[record], h Handle) *record {
	t.Helper()
	ptr, err := p.Pointer(h)
	require.NoError(t, err)
	return ptr
}

func TestNewPool_Defaults(t *testing.T) {
	p := New[record]()
	defer p.Close()

	assert.Equal(t, recordSize, p.Size())
	assert.Equal(t, DefaultMaxCachedFrees, p.Config().MaxCachedFrees)
	assert.Equal(t, ReturnToSystem, p.Config().OverflowPolicy)
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, 0, p.Cached())
	assert.Empty(t, p.Live())
	assert.False(t, p.Closed())
}

func TestNewPool_NegativeCapacityClamped(t *testing.T) {
	p := New[record](WithConfig(Config{MaxCachedFrees: -5}))
	defer p.Close()
	assert.Equal(t, 0, p.Config().MaxCachedFrees)
}

func TestPool_AcquireLinksAtTail(t *testing.T) {
	p, _ := newTestPool(t)
	defer p.Close()

	hs := acquireN(t, p, 4)
	assert.Equal(t, hs, p.Live())
	assert.Equal(t, []Handle{hs[3], hs[2], hs[1], hs[0]}, p.LiveReverse())
	assert.Equal(t, 4, p.Len())

	seen := make(map[*record]bool)
	for _, h := range hs {
		assert.False(t, h.IsZero())
		ptr := pointerOf(t, p, h)
		assert.False(t, seen[ptr], "payloads must not overlap")
		seen[ptr] = true
	}
}

func TestPool_SizeMismatch(t *testing.T) {
	p, tracker := newTestPool(t)
	defer p.Close()

	h, err := p.Acquire(recordSize + 1)
	require.Error(t, err)
	assert.True(t, h.IsZero())
	assert.ErrorIs(t, err, ErrSizeMismatch)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSizeMismatch))
	expected, ok := errors.Detail(err, "expected")
	require.True(t, ok)
	assert.Equal(t, recordSize, expected)
	assert.Equal(t, 0, tracker.Allocs())
	assert.Equal(t, 0, p.Len())
}

// A scenario from the pool's documentation: cache of two, three blocks.
func TestPool_OverflowReturnsToSystem(t *testing.T) {
	p, tracker := newTestPool(t, WithMaxCachedFrees(2))
	defer p.Close()

	hs := acquireN(t, p, 3)
	a, b, c := hs[0], hs[1], hs[2]
	ptrB := pointerOf(t, p, b)
	ptrC := pointerOf(t, p, c)
	require.Equal(t, 3, tracker.Allocs())

	require.NoError(t, p.Release(a))
	require.NoError(t, p.Release(b))
	assert.Equal(t, 2, p.Cached())
	assert.Equal(t, []Handle{c}, p.Live())

	require.NoError(t, p.Release(c))
	assert.Equal(t, 2, p.Cached())
	assert.Equal(t, 1, tracker.Frees())
	assert.Empty(t, p.Live())

	st := p.Stats()
	assert.EqualValues(t, 1, st.Overflows)
	assert.EqualValues(t, 1, st.SystemFrees)
	assert.EqualValues(t, 0, st.Rejections)

	// The most recently released block comes back first, without a system call.
	h, err := p.Acquire(recordSize)
	require.NoError(t, err)
	got := pointerOf(t, p, h)
	assert.Same(t, ptrB, got)
	assert.NotSame(t, ptrC, got)
	assert.Equal(t, 3, tracker.Allocs())
	assert.Equal(t, 1, p.Cached())
}

func TestPool_ReuseWithoutSystemAllocation(t *testing.T) {
	const n = 8
	p, tracker := newTestPool(t, WithMaxCachedFrees(16))
	defer p.Close()

	first := make(map[*record]bool)
	for _, h := range acquireN(t, p, n) {
		first[pointerOf(t, p, h)] = true
		require.NoError(t, p.Release(h))
	}
	require.Equal(t, n, tracker.Allocs())
	require.Equal(t, n, p.Cached())

	for _, h := range acquireN(t, p, n) {
		assert.True(t, first[pointerOf(t, p, h)], "expected a recycled block")
	}
	assert.Equal(t, n, tracker.Allocs())
	assert.Equal(t, 0, p.Cached())
	assert.InDelta(t, 0.5, p.Stats().HitRate(), 1e-9)
}

func TestPool_PayloadNotCleared(t *testing.T) {
	p, _ := newTestPool(t)
	defer p.Close()

	h, err := p.Acquire(recordSize)
	require.NoError(t, err)
	ptr := pointerOf(t, p, h)
	ptr.ID = 42
	ptr.Name = "kept"

	require.NoError(t, p.Release(h))
	h2, err := p.Acquire(recordSize)
	require.NoError(t, err)

	again := pointerOf(t, p, h2)
	assert.Same(t, ptr, again)
	assert.EqualValues(t, 42, again.ID)
	assert.Equal(t, "kept", again.Name)
}

func TestPool_CacheBound(t *testing.T) {
	p, tracker := newTestPool(t, WithMaxCachedFrees(3))
	defer p.Close()

	for _, h := range acquireN(t, p, 5) {
		require.NoError(t, p.Release(h))
		assert.LessOrEqual(t, p.Cached(), 3)
	}
	assert.Equal(t, 3, p.Cached())
	assert.Equal(t, 2, tracker.Frees())
	assert.EqualValues(t, 2, p.Stats().Overflows)
}

func TestPool_ZeroCapacityFreesEveryRelease(t *testing.T) {
	p, tracker := newTestPool(t, WithMaxCachedFrees(0))
	defer p.Close()

	for i := 0; i < 4; i++ {
		h, err := p.Acquire(recordSize)
		require.NoError(t, err)
		require.NoError(t, p.Release(h))
	}
	assert.Equal(t, 0, p.Cached())
	assert.Equal(t, 4, tracker.Allocs())
	assert.Equal(t, 4, tracker.Frees())
	assert.Equal(t, 0, tracker.Outstanding())
}

func TestPool_LiveListIntegrity(t *testing.T) {
	p, _ := newTestPool(t, WithMaxCachedFrees(8))
	defer p.Close()

	rng := rand.New(rand.NewSource(7))
	var model []Handle

	for step := 0; step < 2000; step++ {
		if len(model) == 0 || rng.Intn(3) > 0 {
			h, err := p.Acquire(recordSize)
			require.NoError(t, err)
			model = append(model, h)
		} else {
			i := rng.Intn(len(model))
			require.NoError(t, p.Release(model[i]))
			model = append(model[:i], model[i+1:]...)
		}

		if step%50 == 0 {
			forward := p.Live()
			reverse := p.LiveReverse()
			require.Equal(t, model, forward)
			require.Len(t, reverse, len(forward))
			for i := range forward {
				require.Equal(t, forward[i], reverse[len(reverse)-1-i])
			}
			require.Equal(t, len(model), p.Len())
		}
	}
}

func TestPool_FailPolicyRejects(t *testing.T) {
	p, tracker := newTestPool(t, WithMaxCachedFrees(1), WithOverflowPolicy(Fail))

	hs := acquireN(t, p, 3)
	require.NoError(t, p.Release(hs[0]))

	err := p.Release(hs[1])
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	detached, ok := errors.Detail(err, "detached")
	require.True(t, ok)
	assert.Equal(t, true, detached)

	// Repeating the situation yields the same error and leaves the cache alone.
	err = p.Release(hs[2])
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, 1, p.Cached())
	assert.Equal(t, 2, p.Detached())
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, 0, tracker.Frees())

	// Detached blocks are no longer live.
	assert.ErrorIs(t, p.Release(hs[1]), ErrInvalidRelease)

	st := p.Stats()
	assert.EqualValues(t, 2, st.Rejections)
	assert.EqualValues(t, 2, st.Overflows)

	require.NoError(t, p.Close())
	assert.Equal(t, 3, tracker.Frees())
	assert.NoError(t, tracker.Verify())
}

func TestPool_StrictOverflowKeepsBlockLive(t *testing.T) {
	p, tracker := newTestPool(t,
		WithMaxCachedFrees(1),
		WithOverflowPolicy(Fail),
		WithStrictOverflow(true),
	)
	defer p.Close()

	hs := acquireN(t, p, 2)
	require.NoError(t, p.Release(hs[0]))

	for i := 0; i < 2; i++ {
		err := p.Release(hs[1])
		assert.ErrorIs(t, err, ErrCapacityExceeded)
		assert.Equal(t, []Handle{hs[1]}, p.Live())
		assert.Equal(t, 1, p.Cached())
		assert.Equal(t, 0, p.Detached())
	}

	// Drain the cache and the rejected block can now be released.
	h, err := p.Acquire(recordSize)
	require.NoError(t, err)
	require.NoError(t, p.Release(hs[1]))
	assert.Equal(t, []Handle{h}, p.Live())
	assert.Equal(t, 2, tracker.Allocs())
}

func TestPool_OutOfMemoryLeavesPoolUnchanged(t *testing.T) {
	limited := NewLimitedAllocator[record](nil, 2)
	p := NewWithAllocator[record](limited, WithMaxCachedFrees(4))
	defer p.Close()

	hs := acquireN(t, p, 2)
	before := p.Stats()

	h, err := p.Acquire(recordSize)
	require.Error(t, err)
	assert.True(t, h.IsZero())
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.ErrorIs(t, err, errAllocatorExhausted)

	assert.Equal(t, hs, p.Live())
	assert.Equal(t, before, p.Stats())
	assert.Equal(t, 2, limited.Outstanding())

	// A cached block is still served once one is released.
	require.NoError(t, p.Release(hs[0]))
	_, err = p.Acquire(recordSize)
	assert.NoError(t, err)
}

type nilAllocator struct{}

func (nilAllocator) Allocate(uintptr) (*record, error) { return nil, nil }
func (nilAllocator) Free(*record)                      {}

func TestPool_AllocatorReturningNil(t *testing.T) {
	p := NewWithAllocator[record](nilAllocator{})
	defer p.Close()

	_, err := p.Acquire(recordSize)
	assert.ErrorIs(t, err, ErrOutOfMemory)
	assert.Equal(t, 0, p.Len())
}

func TestPool_InvalidRelease(t *testing.T) {
	p, _ := newTestPool(t)
	defer p.Close()

	t.Run("zero handle", func(t *testing.T) {
		assert.ErrorIs(t, p.Release(Handle{}), ErrInvalidRelease)
	})

	t.Run("double release", func(t *testing.T) {
		h, err := p.Acquire(recordSize)
		require.NoError(t, err)
		require.NoError(t, p.Release(h))
		assert.ErrorIs(t, p.Release(h), ErrInvalidRelease)
	})

	t.Run("stale handle after reuse", func(t *testing.T) {
		h, err := p.Acquire(recordSize)
		require.NoError(t, err)
		require.NoError(t, p.Release(h))

		h2, err := p.Acquire(recordSize)
		require.NoError(t, err)
		assert.Equal(t, h.index, h2.index)
		assert.NotEqual(t, h, h2)

		assert.ErrorIs(t, p.Release(h), ErrInvalidRelease)
		_, err = p.Pointer(h)
		assert.ErrorIs(t, err, ErrInvalidRelease)
		assert.NoError(t, p.Release(h2))
	})

	t.Run("handle from another pool", func(t *testing.T) {
		other, _ := newTestPool(t)
		defer other.Close()
		h, err := other.Acquire(recordSize)
		require.NoError(t, err)

		assert.ErrorIs(t, p.Release(h), ErrInvalidRelease)
		assert.Equal(t, 1, other.Len())
	})

	t.Run("foreign pointer", func(t *testing.T) {
		assert.ErrorIs(t, p.ReleasePointer(&record{}), ErrInvalidRelease)
		assert.ErrorIs(t, p.ReleasePointer(nil), ErrInvalidRelease)
	})
}

func TestPool_ReleasePointer(t *testing.T) {
	p, _ := newTestPool(t, WithMaxCachedFrees(4))
	defer p.Close()

	ptr, err := p.New()
	require.NoError(t, err)
	ptr.Name = "via pointer"
	assert.Equal(t, 1, p.Len())

	require.NoError(t, p.Delete(ptr))
	assert.Equal(t, 0, p.Len())
	assert.Equal(t, 1, p.Cached())
	assert.ErrorIs(t, p.Delete(ptr), ErrInvalidRelease)
}

func TestPool_DeleteFuncRunsOnlyOnLiveBlocks(t *testing.T) {
	p, _ := newTestPool(t, WithMaxCachedFrees(4))
	defer p.Close()

	var seen []*record
	destruct := func(r *record) { seen = append(seen, r) }

	ptr, err := p.New()
	require.NoError(t, err)
	require.NoError(t, p.DeleteFunc(ptr, destruct))
	require.Equal(t, []*record{ptr}, seen)

	assert.ErrorIs(t, p.DeleteFunc(ptr, destruct), ErrInvalidRelease)
	assert.ErrorIs(t, p.DeleteFunc(&record{}, destruct), ErrInvalidRelease)
	assert.ErrorIs(t, p.DeleteFunc(nil, destruct), ErrInvalidRelease)
	assert.Len(t, seen, 1)
	assert.Equal(t, 1, p.Cached())
}

func TestPool_ZeroSizedType(t *testing.T) {
	p := New[struct{}]()
	defer p.Close()

	assert.Zero(t, p.Size())
	h, err := p.Acquire(0)
	require.NoError(t, err)
	ptr, err := p.Pointer(h)
	require.NoError(t, err)

	err = p.ReleasePointer(ptr)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	assert.NotErrorIs(t, err, ErrSizeMismatch)
	assert.NoError(t, p.Release(h))
}

func TestPool_CloseReturnsEveryBlock(t *testing.T) {
	p, tracker := newTestPool(t, WithMaxCachedFrees(2))

	hs := acquireN(t, p, 6)
	// Two cached, one freed on overflow, three still live.
	require.NoError(t, p.Release(hs[1]))
	require.NoError(t, p.Release(hs[3]))
	require.NoError(t, p.Release(hs[5]))
	require.Equal(t, 1, tracker.Frees())

	require.NoError(t, p.Close())
	assert.Equal(t, 6, tracker.Allocs())
	assert.Equal(t, 6, tracker.Frees())
	assert.Equal(t, 0, tracker.DoubleFrees())
	assert.NoError(t, tracker.Verify())
	assert.EqualValues(t, 6, p.Stats().SystemFrees)
}

func TestPool_CloseIsIdempotent(t *testing.T) {
	p, tracker := newTestPool(t)
	acquireN(t, p, 3)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
	assert.Equal(t, 3, tracker.Frees())
	assert.NoError(t, tracker.Verify())
}

func TestPool_UseAfterClose(t *testing.T) {
	p, _ := newTestPool(t)
	h, err := p.Acquire(recordSize)
	require.NoError(t, err)
	require.NoError(t, p.Close())

	_, err = p.Acquire(recordSize)
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, p.Release(h), ErrPoolClosed)
	_, err = p.Pointer(h)
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, p.ReleasePointer(&record{}), ErrPoolClosed)

	op, ok := errors.Detail(p.Release(h), "op")
	require.True(t, ok)
	assert.Equal(t, "release", op)
}

func TestPool_Stats(t *testing.T) {
	p, _ := newTestPool(t, WithName("records"), WithMaxCachedFrees(1))
	defer p.Close()

	hs := acquireN(t, p, 3)
	require.NoError(t, p.Release(hs[0]))
	require.NoError(t, p.Release(hs[1]))
	_, err := p.Acquire(recordSize)
	require.NoError(t, err)

	st := p.Stats()
	assert.Equal(t, "records", p.Name())
	assert.EqualValues(t, 4, st.Acquires)
	assert.EqualValues(t, 2, st.Releases)
	assert.EqualValues(t, 1, st.Hits)
	assert.EqualValues(t, 3, st.Misses)
	assert.EqualValues(t, 3, st.SystemAllocs)
	assert.EqualValues(t, 1, st.SystemFrees)
	assert.EqualValues(t, 2, st.Outstanding())
	assert.Equal(t, 2, st.Live)
	assert.Equal(t, 0, st.Cached)
	assert.Equal(t, 1, st.MaxCachedFrees)
	assert.Equal(t, ReturnToSystem, st.Policy)
	assert.InDelta(t, 0.25, st.HitRate(), 1e-9)
}

func BenchmarkPool_AcquireRelease(b *testing.B) {
	p := New[record]()
	defer p.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h, err := p.Acquire(recordSize)
		if err != nil {
			b.Fatal(err)
		}
		if err := p.Release(h); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkHeap_NewRecord(b *testing.B) {
	b.ReportAllocs()
	var sink *record
	for i := 0; i < b.N; i++ {
		sink = new(record)
	}
	_ = sink
}
