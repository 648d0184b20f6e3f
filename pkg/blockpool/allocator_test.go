package blockpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeapAllocator_FreeClearsBlock(t *testing.T) {
	var a HeapAllocator[record]
	p, err := a.Allocate(recordSize)
	require.NoError(t, err)
	p.Name = "gone"
	p.Tags = []string{"x"}

	a.Free(p)
	assert.Equal(t, record{}, *p)
	a.Free(nil)
}

func TestLimitedAllocator(t *testing.T) {
	a := NewLimitedAllocator[record](nil, 1)

	p, err := a.Allocate(recordSize)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Outstanding())

	_, err = a.Allocate(recordSize)
	assert.ErrorIs(t, err, errAllocatorExhausted)

	a.Free(p)
	assert.Equal(t, 0, a.Outstanding())
	_, err = a.Allocate(recordSize)
	assert.NoError(t, err)
}

func TestTrackingAllocator(t *testing.T) {
	a := NewTrackingAllocator[record](nil)

	p1, err := a.Allocate(recordSize)
	require.NoError(t, err)
	p2, err := a.Allocate(recordSize)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Outstanding())
	assert.Error(t, a.Verify())

	a.Free(p1)
	a.Free(p2)
	assert.Equal(t, 2, a.Frees())
	assert.NoError(t, a.Verify())

	t.Run("double free", func(t *testing.T) {
		a.Free(p1)
		assert.Equal(t, 1, a.DoubleFrees())
		assert.Equal(t, 2, a.Frees())
		assert.Error(t, a.Verify())
	})
}

func TestTrackingAllocator_ForeignFree(t *testing.T) {
	a := NewTrackingAllocator[record](nil)
	a.Free(&record{})
	assert.Equal(t, 0, a.Frees())
	assert.Error(t, a.Verify())
}
