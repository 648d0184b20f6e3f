// Package bench compares allocation strategies on a short-lived-object
// workload and checks the pool's overflow behaviour.
package bench

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/blockpool/pkg/config"
	"github.com/ajitpratap0/blockpool/pkg/errors"
	"github.com/ajitpratap0/blockpool/pkg/logger"
	"github.com/ajitpratap0/blockpool/pkg/metrics"
	"github.com/ajitpratap0/blockpool/pkg/observability"
	"github.com/ajitpratap0/blockpool/pkg/performance"
)

// ctxCheckInterval is how many loops run between cancellation checks.
const ctxCheckInterval = 4096

// Runner executes the benchmark described by a Config.
type Runner struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *metrics.PoolCollector
	monitor   *performance.ResourceMonitor
	tracer    *observability.PoolTracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger overrides the global logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithCollector exposes the blockpool strategy's pool through c while it runs.
func WithCollector(c *metrics.PoolCollector) Option {
	return func(r *Runner) {
		r.collector = c
	}
}

// WithResourceMonitor records process resource deltas for each strategy.
func WithResourceMonitor(m *performance.ResourceMonitor) Option {
	return func(r *Runner) {
		r.monitor = m
	}
}

// NewRunner validates cfg and creates a Runner.
func NewRunner(cfg *config.Config, opts ...Option) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:    cfg,
		logger: logger.Get(),
		tracer: observability.NewPoolTracer(cfg.Pool.Name),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "bench"))
	return r, nil
}

// Run executes every configured strategy in order and returns the report.
// Cancelling ctx stops the current strategy and returns ctx.Err().
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Loops:     r.cfg.Bench.Loops,
		Pool:      r.cfg.Pool,
	}
	ctx = logger.ContextWithRunID(ctx, report.RunID)
	ctx = logger.ContextWithPool(ctx, r.cfg.Pool.Name)
	log := r.logger.With(zap.String(string(logger.RunIDKey), report.RunID))

	log.Info("starting benchmark",
		zap.Int("loops", report.Loops),
		zap.Strings("strategies", r.cfg.Bench.Strategies),
		zap.Int("max_cached_frees", r.cfg.Pool.MaxCachedFrees),
		zap.String("overflow_policy", r.cfg.Pool.OverflowPolicy))

	for _, name := range r.cfg.Bench.Strategies {
		var result *Result
		err := r.tracer.Trace(ctx, "bench."+name, func(ctx context.Context) error {
			var err error
			result, err = r.runStrategy(ctx, name)
			return err
		})
		if err != nil {
			return nil, err
		}
		report.Results = append(report.Results, *result)

		log.Info("strategy finished",
			zap.String("strategy", name),
			zap.Duration("duration", result.Duration),
			zap.Float64("ns_per_loop", result.NsPerLoop))
	}
	return report, nil
}

func (r *Runner) runStrategy(ctx context.Context, name string) (*Result, error) {
	shared := r.collector != nil
	s, err := NewStrategy(name, r.cfg.Pool, shared)
	if err != nil {
		return nil, err
	}
	if bp, ok := s.(*blockpoolStrategy); ok && r.collector != nil {
		r.collector.Add(bp.backend)
	}

	var before *performance.ResourceUsage
	if r.monitor != nil {
		if before, err = r.monitor.GetResourceUsage(); err != nil {
			r.logger.Warn("failed to sample resources", zap.Error(err))
		}
	}

	tracker := metrics.NewThroughputTracker(name)
	timer := metrics.NewTimer(name)
	loops := r.cfg.Bench.Loops
	for i := 0; i < loops; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				_ = s.Close()
				return nil, err
			}
		}
		if err := workload(s); err != nil {
			_ = s.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeInternal, "workload failed").
				WithDetail("strategy", name).
				WithDetail("loop", i)
		}
	}
	elapsed := timer.Stop()
	tracker.Increment(int64(loops))
	loopsPerSec := tracker.GetAndReset()
	metrics.BenchDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	result := &Result{
		Strategy:    name,
		Loops:       loops,
		Duration:    elapsed,
		NsPerLoop:   float64(elapsed.Nanoseconds()) / float64(loops),
		LoopsPerSec: loopsPerSec,
	}

	switch st := s.(type) {
	case *blockpoolStrategy:
		stats := st.Stats()
		result.Pool = &stats
	case *syncPoolStrategy:
		stats := st.pool.Stats()
		result.SyncPool = &stats
	}

	if r.monitor != nil && before != nil {
		if after, err := r.monitor.GetResourceUsage(); err == nil {
			delta := after.Since(before)
			result.Resources = &delta
		}
	}

	if err := s.Close(); err != nil {
		return nil, err
	}
	return result, nil
}
