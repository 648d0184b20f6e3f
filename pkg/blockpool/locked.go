package blockpool

import "sync"

// Locked guards a Pool with a single mutex so one pool can be shared across
// goroutines. Every method takes the lock for the duration of the call.
type Locked[T any] struct {
	mu   sync.Mutex
	pool *Pool[T]
}

// NewLocked wraps p. The caller must stop using p directly.
func NewLocked[T any](p *Pool[T]) *Locked[T] {
	return &Locked[T]{pool: p}
}

// Acquire is Pool.Acquire under the lock.
func (l *Locked[T]) Acquire(size uintptr) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Acquire(size)
}

// Pointer is Pool.Pointer under the lock.
func (l *Locked[T]) Pointer(h Handle) (*T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Pointer(h)
}

// Release is Pool.Release under the lock.
func (l *Locked[T]) Release(h Handle) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Release(h)
}

// ReleasePointer is Pool.ReleasePointer under the lock.
func (l *Locked[T]) ReleasePointer(ptr *T) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.ReleasePointer(ptr)
}

// New is Pool.New under the lock.
func (l *Locked[T]) New() (*T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.New()
}

// Delete is Pool.Delete under the lock.
func (l *Locked[T]) Delete(ptr *T) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Delete(ptr)
}

// DeleteFunc is Pool.DeleteFunc under the lock; destruct runs while it is held.
func (l *Locked[T]) DeleteFunc(ptr *T, destruct func(*T)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.DeleteFunc(ptr, destruct)
}

// Close is Pool.Close under the lock.
func (l *Locked[T]) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Close()
}

// Name returns the pool name.
func (l *Locked[T]) Name() string {
	return l.pool.Name()
}

// Stats is Pool.Stats under the lock.
func (l *Locked[T]) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pool.Stats()
}

// Do runs fn with exclusive access to the pool, for sequences of operations
// that must not interleave with other goroutines.
func (l *Locked[T]) Do(fn func(p *Pool[T]) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.pool)
}
