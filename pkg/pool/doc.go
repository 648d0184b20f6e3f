// Package pool implements a type-safe object pool over sync.Pool.
//
// # Architecture
//
// Pool[T] builds on sync.Pool and adds a reset hook and statistics. It is
// the garbage-collected counterpart of blockpool.Pool: objects that are put
// back may vanish at the next GC cycle, nothing bounds the number of cached
// objects, and the pool never frees anything explicitly. The benchmark
// runner uses it as the syncpool strategy.
//
// # Usage Patterns
//
//	builders := pool.New(
//		func() *strings.Builder { return &strings.Builder{} },
//		(*strings.Builder).Reset,
//	)
//	b := builders.Get()
//	defer builders.Put(b)
//
// Allocator adapts a Pool into a blockpool.Allocator:
//
//	p := blockpool.NewWithAllocator[Message](pool.NewAllocator[Message]())
//
// # Metrics
//
// Stats reports:
//   - Allocated: objects created by the factory
//   - InUse: objects currently checked out
//   - Hits: retrievals served by a recycled object
//   - Misses: retrievals that needed a new object
package pool
