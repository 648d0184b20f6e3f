// Package blockpool is the root of a fixed-object-size memory pool and the
// tooling around it.
//
// A pool hands out blocks sized for exactly one type. Released blocks go onto a
// bounded LIFO free cache and are handed out again before the system allocator
// is asked for more, which makes create/delete churn of short-lived objects
// nearly free once the cache is warm.
//
// # Layout
//
//   - pkg/blockpool: the pool itself (Pool, Locked, Binding, Allocator)
//   - pkg/pool: a sync.Pool based baseline for comparison
//   - pkg/config: YAML and environment configuration via viper
//   - pkg/logger: the global zap logger
//   - pkg/metrics: Prometheus collector for pool statistics
//   - pkg/observability: OpenTelemetry tracing
//   - pkg/performance: process resource sampling via gopsutil
//   - internal/bench: the pooled vs non-pooled benchmark harness
//   - cmd/blockpool: the command-line tool
//
// # Quick Start
//
//	p := blockpool.New[Message](blockpool.WithMaxCachedFrees(256))
//	defer p.Close()
//
//	m, err := p.New()
//	if err != nil {
//	    return err
//	}
//	// ... use m ...
//	if err := p.Delete(m); err != nil {
//	    return err
//	}
//
// Compare strategies from the command line:
//
//	blockpool bench --loops 1048576 --strategy heap,blockpool,syncpool
//	blockpool exceed --max-cached-frees 1024 --overflow-policy fail
package blockpool
