// Package metrics exposes blockpool activity as Prometheus metrics.
//
// # Overview
//
// The metrics package provides:
//   - PoolCollector, a prometheus.Collector reading pool Stats on every scrape
//   - Pre-defined benchmark metrics registered with the default registry
//   - Timer and ThroughputTracker helpers for the benchmark runner
//
// # Basic Usage
//
//	p := blockpool.NewLocked(blockpool.New[Message](blockpool.WithName("messages")))
//	prometheus.MustRegister(metrics.NewPoolCollector(p))
//	http.Handle("/metrics", promhttp.Handler())
//
// # Metric Types
//
// Counter: Monotonically increasing values (acquires, releases, system frees)
// Gauge: Values that can go up or down (live, cached and detached blocks)
// Histogram: Distribution of values (benchmark run duration)
//
// A Pool is not safe for concurrent use, and a scrape runs on the HTTP
// server's goroutine. Register a Locked pool when scrapes can overlap use.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ajitpratap0/blockpool/pkg/blockpool"
)

const namespace = "blockpool"

// StatsSource is anything that reports pool statistics under a name.
// *blockpool.Pool and *blockpool.Locked both qualify.
type StatsSource interface {
	Name() string
	Stats() blockpool.Stats
}

// PoolCollector converts the Stats of one or more pools into metrics at
// scrape time. Each pool is labelled by its name.
type PoolCollector struct {
	mu      sync.RWMutex
	sources []StatsSource

	acquires     *prometheus.Desc
	releases     *prometheus.Desc
	hits         *prometheus.Desc
	misses       *prometheus.Desc
	systemAllocs *prometheus.Desc
	systemFrees  *prometheus.Desc
	overflows    *prometheus.Desc
	rejections   *prometheus.Desc
	live         *prometheus.Desc
	cached       *prometheus.Desc
	detached     *prometheus.Desc
	capacity     *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector creates a collector over sources. More pools can be added with Add.
//
// Example:
//
//	collector := metrics.NewPoolCollector(builders, messages)
//	registry.MustRegister(collector)
func NewPoolCollector(sources ...StatsSource) *PoolCollector {
	labels := []string{"pool"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	c := &PoolCollector{
		acquires:     desc("acquires_total", "Successful block acquisitions"),
		releases:     desc("releases_total", "Blocks unlinked from the live list by a release"),
		hits:         desc("cache_hits_total", "Acquisitions served from the free cache"),
		misses:       desc("cache_misses_total", "Acquisitions that went to the system allocator"),
		systemAllocs: desc("system_allocs_total", "Blocks obtained from the system allocator"),
		systemFrees:  desc("system_frees_total", "Blocks returned to the system allocator"),
		overflows:    desc("overflows_total", "Releases that found the free cache full"),
		rejections:   desc("rejections_total", "Releases rejected with capacity exceeded"),
		live:         desc("live_blocks", "Blocks currently handed out"),
		cached:       desc("cached_blocks", "Blocks waiting in the free cache"),
		detached:     desc("detached_blocks", "Blocks dropped by fail-policy overflows awaiting teardown"),
		capacity:     desc("max_cached_frees", "Free cache bound"),
	}
	for _, src := range sources {
		c.Add(src)
	}
	return c
}

// Add registers another pool with the collector. A source with the same name
// as one already registered replaces it, so each label value is reported once.
func (c *PoolCollector) Add(src StatsSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.sources {
		if existing.Name() == src.Name() {
			c.sources[i] = src
			return
		}
	}
	c.sources = append(c.sources, src)
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.acquires, c.releases, c.hits, c.misses,
		c.systemAllocs, c.systemFrees, c.overflows, c.rejections,
		c.live, c.cached, c.detached, c.capacity,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, src := range c.sources {
		name := src.Name()
		st := src.Stats()

		counter := func(d *prometheus.Desc, v int64) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), name)
		}
		gauge := func(d *prometheus.Desc, v int) {
			ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, float64(v), name)
		}

		counter(c.acquires, st.Acquires)
		counter(c.releases, st.Releases)
		counter(c.hits, st.Hits)
		counter(c.misses, st.Misses)
		counter(c.systemAllocs, st.SystemAllocs)
		counter(c.systemFrees, st.SystemFrees)
		counter(c.overflows, st.Overflows)
		counter(c.rejections, st.Rejections)
		gauge(c.live, st.Live)
		gauge(c.cached, st.Cached)
		gauge(c.detached, st.Detached)
		gauge(c.capacity, st.MaxCachedFrees)
	}
}

var (
	// BenchDuration tracks the wall time of one strategy run in seconds.
	// Labels: strategy (heap/blockpool/syncpool)
	//
	// Example:
	//	timer := metrics.NewTimer("blockpool")
	//	runLoops()
	//	metrics.BenchDuration.WithLabelValues("blockpool").Observe(timer.Stop().Seconds())
	BenchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bench_duration_seconds",
			Help:      "Benchmark strategy run duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"strategy"},
	)

	// BenchLoops counts completed workload iterations.
	BenchLoops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bench_loops_total",
			Help:      "Completed benchmark workload iterations",
		},
		[]string{"strategy"},
	)

	// Throughput tracks workload iterations per second.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bench_loops_per_second",
			Help:      "Benchmark workload iterations per second",
		},
		[]string{"strategy"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer name.
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. It can be called more than once.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks loops per second over time windows.
// Thread-safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	strategy  string
}

// NewThroughputTracker creates a tracker labelled with strategy.
func NewThroughputTracker(strategy string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		strategy:  strategy,
	}
}

// Increment adds n to the loop count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput, updates the Throughput
// gauge and BenchLoops counter, and resets the window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed
	BenchLoops.WithLabelValues(t.strategy).Add(float64(t.count))
	Throughput.WithLabelValues(t.strategy).Set(throughput)

	t.count = 0
	t.lastReset = time.Now()
	return throughput
}
