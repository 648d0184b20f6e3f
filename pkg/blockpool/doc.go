// Package blockpool implements a fixed-object-size memory pool. It amortizes
// repeated allocate/release cycles for one concrete type by caching released
// blocks for reuse instead of handing them back to the system allocator.
//
// # Architecture
//
// A Pool[T] owns three cooperating structures:
//
//   - Arena: a slice of slots, one per block the pool has obtained from its
//     Allocator. A slot carries the block metadata (live-list links, state,
//     generation) and the payload pointer.
//   - Live list: an intrusive doubly-linked list of slot indices recording
//     every block currently handed out, so teardown can release them en masse.
//   - Free cache: a bounded LIFO stack of slot indices for blocks that were
//     released by the caller but not yet returned to the Allocator.
//
// Acquire pops the free cache (most recently released first) and falls back
// to the Allocator on a miss. Release unlinks the block from the live list and
// either pushes it onto the free cache or, when the cache already holds
// MaxCachedFrees entries, applies the OverflowPolicy.
//
// # Handles
//
// Blocks are addressed by Handle, an arena index paired with a generation.
// Every acquisition bumps the generation, so a handle from a previous lifetime
// of the same block is rejected with ErrInvalidRelease instead of corrupting
// the live list. Pointer resolves a live handle to its payload.
//
// The payload is never constructed, reset, or zeroed by the pool. A block
// popped from the free cache still holds whatever its previous user left there.
//
// # Overflow Policy
//
//	ReturnToSystem (default): excess blocks go straight back to the Allocator.
//	Fail:                     the release returns ErrCapacityExceeded.
//
// Under Fail the block has already been unlinked from the live list when the
// error is returned, so the caller no longer owns it and the pool does not
// cache it. Such blocks are detached: they are only returned to the Allocator
// by Close. WithStrictOverflow checks capacity before unlinking instead, which
// leaves the block live and lets the caller retry.
//
// # Host Types
//
// A type opts into pooled allocation through Binding, an explicit adapter over
// a Backend (a Pool or a Locked pool):
//
//	p := blockpool.New[Message](blockpool.WithMaxCachedFrees(256))
//	defer p.Close()
//
//	msgs := blockpool.Bind[Message](p, func(m *Message) { m.Reset() }, nil)
//	m, err := msgs.New()
//	if err != nil {
//		return err
//	}
//	defer msgs.Delete(m)
//
// # Thread Safety
//
// Pool is not safe for concurrent use. Locked wraps a Pool behind a single
// mutex for callers that share one pool across goroutines; the alternative is
// one Pool per goroutine with no cross-goroutine reuse.
package blockpool
