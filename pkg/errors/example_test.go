// Package errors provides examples of structured error handling in blockpool.
package errors_test

import (
	stderrors "errors"
	"fmt"
	"io"

	"github.com/ajitpratap0/blockpool/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeCapacityExceeded, "free cache is full").
		WithDetail("max_cached_frees", 1024)

	fmt.Println(err.Error())

	// Output:
	// capacity_exceeded: free cache is full
}

// ExampleWrap shows how to wrap an allocator failure with context.
func ExampleWrap() {
	err := errors.Wrap(io.ErrShortBuffer, errors.ErrorTypeOutOfMemory, "system allocator failed").
		WithDetail("size", 64)

	if errors.IsType(err, errors.ErrorTypeOutOfMemory) {
		fmt.Println("out of memory")
	}
	if stderrors.Is(err, io.ErrShortBuffer) {
		fmt.Println("cause preserved")
	}

	// Output:
	// out of memory
	// cause preserved
}

// ExampleError_Is demonstrates matching returned errors against sentinels.
func ExampleError_Is() {
	sentinel := errors.Sentinel(errors.ErrorTypeInvalidRelease, "block is not live")

	err := errors.New(errors.ErrorTypeInvalidRelease, "double release").
		WithDetail("index", 3)

	fmt.Println(stderrors.Is(err, sentinel))
	fmt.Println(stderrors.Is(err, errors.Sentinel(errors.ErrorTypeClosed, "closed")))

	// Output:
	// true
	// false
}
