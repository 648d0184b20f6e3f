package blockpool

// Backend is what a host type needs from a pool to route its allocation
// through it. Both *Pool[T] and *Locked[T] implement it.
type Backend[T any] interface {
	New() (*T, error)
	DeleteFunc(ptr *T, destruct func(*T)) error
}

var (
	_ Backend[int] = (*Pool[int])(nil)
	_ Backend[int] = (*Locked[int])(nil)
)

// Binding wires a host type's construction and destruction to a pool. The
// pool only hands out raw blocks; construct and destruct are the host type's
// own initialisation and cleanup, run on the block after New and before
// Delete. Either may be nil.
type Binding[T any] struct {
	backend   Backend[T]
	construct func(*T)
	destruct  func(*T)
}

// Bind creates a Binding over backend. The backend's lifetime is owned by the
// caller and must outlast every object created through the Binding.
//
// Example:
//
//	p := blockpool.New[strings.Builder]()
//	defer p.Close()
//
//	builders := blockpool.Bind[strings.Builder](p, (*strings.Builder).Reset, nil)
//	b, _ := builders.New()
//	b.WriteString("Test")
//	_ = builders.Delete(b)
func Bind[T any](backend Backend[T], construct, destruct func(*T)) *Binding[T] {
	return &Binding[T]{
		backend:   backend,
		construct: construct,
		destruct:  destruct,
	}
}

// New allocates a block through the pool and constructs it.
func (b *Binding[T]) New() (*T, error) {
	ptr, err := b.backend.New()
	if err != nil {
		return nil, err
	}
	if b.construct != nil {
		b.construct(ptr)
	}
	return ptr, nil
}

// Delete destructs ptr and releases its block. The destructor only runs on a
// block the pool has confirmed is live: a stale or double Delete leaves the
// block's current owner alone, and so does a strict Fail-policy rejection,
// which keeps the block live for a retry. A non-strict Fail rejection still
// destructs, since the block has already left the live list.
func (b *Binding[T]) Delete(ptr *T) error {
	return b.backend.DeleteFunc(ptr, b.destruct)
}

// Backend returns the pool the binding allocates from.
func (b *Binding[T]) Backend() Backend[T] {
	return b.backend
}
