package blockpool

// Stats is a snapshot of pool activity.
type Stats struct {
	// Acquires counts successful Acquire calls
	Acquires int64
	// Releases counts blocks unlinked from the live list by a release
	Releases int64
	// Hits counts acquisitions served from the free cache
	Hits int64
	// Misses counts acquisitions that went to the Allocator
	Misses int64
	// SystemAllocs counts blocks obtained from the Allocator
	SystemAllocs int64
	// SystemFrees counts blocks returned to the Allocator
	SystemFrees int64
	// Overflows counts releases that found the free cache full
	Overflows int64
	// Rejections counts releases answered with ErrCapacityExceeded
	Rejections int64

	Live           int
	Cached         int
	Detached       int
	MaxCachedFrees int
	Policy         OverflowPolicy
}

// HitRate returns the fraction of acquisitions served from the free cache.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Outstanding returns the number of blocks the pool holds from its Allocator.
func (s Stats) Outstanding() int64 {
	return s.SystemAllocs - s.SystemFrees
}
