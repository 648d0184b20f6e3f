// Package observability provides OpenTelemetry tracing for blockpool tools
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/blockpool/pkg/blockpool"
)

var (
	tracerMu sync.RWMutex
	tracer   trace.Tracer
)

func setTracer(t trace.Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	tracer = t
}

// GetTracer returns the tracer installed by InitTracing, or the global
// provider's tracer when tracing was never initialized.
func GetTracer() trace.Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if tracer == nil {
		return otel.Tracer("blockpool")
	}
	return tracer
}

// Span wraps a trace.Span and batches attributes until End.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan starts a span named operationName.
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := GetTracer().Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetStatus sets the span status
func (s *Span) SetStatus(code codes.Code, description string) {
	s.span.SetStatus(code, description)
}

// Duration returns the time since the span started.
func (s *Span) Duration() time.Duration {
	return time.Since(s.startTime)
}

// End flushes the batched attributes and ends the span.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.End()
}

// PoolAttributes converts pool statistics into span attributes.
func PoolAttributes(st blockpool.Stats) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int64("pool.acquires", st.Acquires),
		attribute.Int64("pool.releases", st.Releases),
		attribute.Int64("pool.cache_hits", st.Hits),
		attribute.Int64("pool.system_allocs", st.SystemAllocs),
		attribute.Int64("pool.system_frees", st.SystemFrees),
		attribute.Int64("pool.overflows", st.Overflows),
		attribute.Int("pool.max_cached_frees", st.MaxCachedFrees),
		attribute.String("pool.overflow_policy", st.Policy.String()),
	}
}

// PoolTracer traces operations against one named pool.
type PoolTracer struct {
	pool   string
	tracer trace.Tracer
}

// NewPoolTracer creates a tracer for the pool called name.
func NewPoolTracer(name string) *PoolTracer {
	return &PoolTracer{
		pool:   name,
		tracer: GetTracer(),
	}
}

// StartSpan starts a span named "<pool>.<operation>".
func (pt *PoolTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := pt.tracer.Start(ctx, pt.pool+"."+operation)
	s := &Span{span: span, startTime: time.Now()}
	s.SetAttribute("pool.name", pt.pool)
	s.SetAttribute("pool.operation", operation)
	return ctx, s
}

// Trace runs fn inside a span and marks the span with fn's outcome.
func (pt *PoolTracer) Trace(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := pt.StartSpan(ctx, operation)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttribute("error", true)
		span.SetAttribute("error.message", err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttribute("duration_ms", span.Duration().Milliseconds())
	return err
}
