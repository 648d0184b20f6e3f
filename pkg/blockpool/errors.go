package blockpool

import (
	"github.com/ajitpratap0/blockpool/pkg/errors"
)

var (
	// ErrOutOfMemory indicates that the Allocator could not satisfy a miss-path allocation.
	ErrOutOfMemory = errors.Sentinel(errors.ErrorTypeOutOfMemory, "blockpool: system allocator could not satisfy request")

	// ErrCapacityExceeded indicates a release under the Fail policy while the free cache is full.
	ErrCapacityExceeded = errors.Sentinel(errors.ErrorTypeCapacityExceeded, "blockpool: free cache is full")

	// ErrInvalidRelease indicates a handle or pointer that does not refer to a live block of this pool.
	ErrInvalidRelease = errors.Sentinel(errors.ErrorTypeInvalidRelease, "blockpool: block is not live")

	// ErrPoolClosed indicates use of a pool after Close.
	ErrPoolClosed = errors.Sentinel(errors.ErrorTypeClosed, "blockpool: pool is closed")

	// ErrSizeMismatch indicates an Acquire size that differs from the pooled type's size.
	ErrSizeMismatch = errors.Sentinel(errors.ErrorTypeSizeMismatch, "blockpool: size does not match pooled type")
)

func sizeMismatch(size, expected uintptr) error {
	return errors.New(ErrSizeMismatch.Type, ErrSizeMismatch.Message).
		WithDetail("size", size).
		WithDetail("expected", expected)
}

func closedError(op string) error {
	return errors.New(errors.ErrorTypeClosed, "pool is closed").
		WithDetail("op", op)
}

func invalidRelease(msg string, h Handle) error {
	return errors.New(errors.ErrorTypeInvalidRelease, msg).
		WithDetail("index", h.index).
		WithDetail("gen", h.gen)
}
