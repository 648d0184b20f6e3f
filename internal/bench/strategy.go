package bench

import (
	"strings"

	"github.com/ajitpratap0/blockpool/pkg/blockpool"
	"github.com/ajitpratap0/blockpool/pkg/config"
	"github.com/ajitpratap0/blockpool/pkg/errors"
	"github.com/ajitpratap0/blockpool/pkg/pool"
	stringpool "github.com/ajitpratap0/blockpool/pkg/strings"
)

// Strategy is one way of obtaining and disposing of the benchmark's builders.
type Strategy interface {
	Name() string
	New() (*stringpool.Builder, error)
	Delete(b *stringpool.Builder) error
	Close() error
}

// NewStrategy builds the named strategy. pc configures the blockpool strategy;
// shared wraps its pool in a Locked so metrics scrapes can read it concurrently.
func NewStrategy(name string, pc config.PoolConfig, shared bool) (Strategy, error) {
	switch strings.TrimSpace(name) {
	case config.StrategyHeap:
		return heapStrategy{}, nil
	case config.StrategyBlockpool:
		return newBlockpoolStrategy(pc, shared), nil
	case config.StrategySyncPool:
		return newSyncPoolStrategy(), nil
	default:
		return nil, errors.New(errors.ErrorTypeConfig, "unknown strategy").
			WithDetail("strategy", name)
	}
}

// heapStrategy allocates every builder from the Go heap and drops it on Delete.
type heapStrategy struct{}

func (heapStrategy) Name() string { return config.StrategyHeap }

func (heapStrategy) New() (*stringpool.Builder, error) {
	return &stringpool.Builder{}, nil
}

func (heapStrategy) Delete(*stringpool.Builder) error { return nil }

func (heapStrategy) Close() error { return nil }

// pooledBackend is what the blockpool strategy needs from Pool or Locked.
type pooledBackend interface {
	blockpool.Backend[stringpool.Builder]
	Name() string
	Stats() blockpool.Stats
	Close() error
}

// blockpoolStrategy routes builders through a blockpool Binding, the way a
// host type opts into pooled allocation.
type blockpoolStrategy struct {
	backend  pooledBackend
	builders *blockpool.Binding[stringpool.Builder]
}

func newBlockpoolStrategy(pc config.PoolConfig, shared bool) *blockpoolStrategy {
	p := blockpool.New[stringpool.Builder](pc.Options()...)

	var backend pooledBackend = p
	if shared {
		backend = blockpool.NewLocked(p)
	}
	return &blockpoolStrategy{
		backend:  backend,
		builders: blockpool.Bind[stringpool.Builder](backend, (*stringpool.Builder).Reset, nil),
	}
}

func (s *blockpoolStrategy) Name() string { return config.StrategyBlockpool }

func (s *blockpoolStrategy) New() (*stringpool.Builder, error) { return s.builders.New() }

func (s *blockpoolStrategy) Delete(b *stringpool.Builder) error { return s.builders.Delete(b) }

func (s *blockpoolStrategy) Close() error { return s.backend.Close() }

func (s *blockpoolStrategy) Stats() blockpool.Stats { return s.backend.Stats() }

// syncPoolStrategy recycles builders through a sync.Pool.
type syncPoolStrategy struct {
	pool *pool.Pool[*stringpool.Builder]
}

func newSyncPoolStrategy() *syncPoolStrategy {
	return &syncPoolStrategy{
		pool: pool.New(
			func() *stringpool.Builder { return &stringpool.Builder{} },
			(*stringpool.Builder).Reset,
		),
	}
}

func (s *syncPoolStrategy) Name() string { return config.StrategySyncPool }

func (s *syncPoolStrategy) New() (*stringpool.Builder, error) { return s.pool.Get(), nil }

func (s *syncPoolStrategy) Delete(b *stringpool.Builder) error {
	s.pool.Put(b)
	return nil
}

func (s *syncPoolStrategy) Close() error { return nil }

// workload is one iteration of the benchmark: three short-lived builders,
// the second of which outlives the third.
func workload(s Strategy) error {
	a, err := s.New()
	if err != nil {
		return err
	}
	a.WriteString("Test")
	if err := s.Delete(a); err != nil {
		return err
	}

	b, err := s.New()
	if err != nil {
		return err
	}
	b.WriteString("Test")

	c, err := s.New()
	if err != nil {
		return err
	}
	c.WriteString("Test")
	if err := s.Delete(c); err != nil {
		return err
	}

	return s.Delete(b)
}
