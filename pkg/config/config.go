package config

import (
	"strings"

	"github.com/ajitpratap0/blockpool/pkg/blockpool"
	"github.com/ajitpratap0/blockpool/pkg/errors"
	"github.com/ajitpratap0/blockpool/pkg/logger"
)

// Strategy names accepted in BenchConfig.Strategies.
const (
	StrategyHeap      = "heap"
	StrategyBlockpool = "blockpool"
	StrategySyncPool  = "syncpool"
)

// Config is the root configuration of the blockpool tools. It is organized
// into sections:
//   - Pool: the pool under test
//   - Bench: the benchmark workload and its outputs
//   - Log: the global zap logger
type Config struct {
	Pool  PoolConfig    `yaml:"pool" json:"pool" mapstructure:"pool"`
	Bench BenchConfig   `yaml:"bench" json:"bench" mapstructure:"bench"`
	Log   logger.Config `yaml:"log" json:"log" mapstructure:"log"`
}

// PoolConfig contains the fixed-per-instance settings of a pool.
type PoolConfig struct {
	// Name labels the pool in metrics and logs
	Name string `yaml:"name" json:"name" mapstructure:"name"`
	// MaxCachedFrees bounds the free cache (0 disables caching)
	MaxCachedFrees int `yaml:"max_cached_frees" json:"max_cached_frees" mapstructure:"max_cached_frees"`
	// OverflowPolicy is return_to_system or fail
	OverflowPolicy string `yaml:"overflow_policy" json:"overflow_policy" mapstructure:"overflow_policy"`
	// StrictOverflow rejects a Fail-policy release before unlinking the block
	StrictOverflow bool `yaml:"strict_overflow" json:"strict_overflow" mapstructure:"strict_overflow"`
}

// BenchConfig contains the benchmark settings.
type BenchConfig struct {
	// Loops is the number of workload iterations per strategy
	Loops int `yaml:"loops" json:"loops" mapstructure:"loops"`
	// Strategies lists the allocation strategies to compare
	Strategies []string `yaml:"strategies" json:"strategies" mapstructure:"strategies"`
	// Output selects the report format (text or json)
	Output string `yaml:"output" json:"output" mapstructure:"output"`
	// EnableMetrics registers the pool collector with Prometheus
	EnableMetrics bool `yaml:"enable_metrics" json:"enable_metrics" mapstructure:"enable_metrics"`
	// MetricsAddr serves /metrics when set, e.g. ":9090"
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr" mapstructure:"metrics_addr"`
	// EnableTracing exports one span per strategy to stdout
	EnableTracing bool `yaml:"enable_tracing" json:"enable_tracing" mapstructure:"enable_tracing"`
}

// NewPoolConfig returns pool settings matching blockpool.DefaultConfig.
func NewPoolConfig(name string) PoolConfig {
	def := blockpool.DefaultConfig()
	return PoolConfig{
		Name:           name,
		MaxCachedFrees: def.MaxCachedFrees,
		OverflowPolicy: def.OverflowPolicy.String(),
	}
}

// NewBenchConfig returns the default benchmark settings.
func NewBenchConfig() BenchConfig {
	return BenchConfig{
		Loops:      1_000_000,
		Strategies: []string{StrategyHeap, StrategyBlockpool, StrategySyncPool},
		Output:     "text",
	}
}

// Default returns a complete configuration with defaults in every section.
//
// Example:
//
//	cfg := config.Default()
//	cfg.Pool.MaxCachedFrees = 256
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
func Default() *Config {
	return &Config{
		Pool:  NewPoolConfig("builders"),
		Bench: NewBenchConfig(),
		Log:   logger.DefaultConfig(),
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	return c.Bench.Validate()
}

// Validate checks the pool settings.
func (pc *PoolConfig) Validate() error {
	if pc.MaxCachedFrees < 0 {
		return errors.New(errors.ErrorTypeConfig, "max_cached_frees cannot be negative").
			WithDetail("max_cached_frees", pc.MaxCachedFrees)
	}
	policy, err := blockpool.ParseOverflowPolicy(pc.OverflowPolicy)
	if err != nil {
		return err
	}
	if pc.StrictOverflow && policy != blockpool.Fail {
		return errors.New(errors.ErrorTypeConfig, "strict_overflow requires the fail policy")
	}
	return nil
}

// Policy returns the parsed overflow policy. Invalid values yield ReturnToSystem;
// call Validate first.
func (pc *PoolConfig) Policy() blockpool.OverflowPolicy {
	p, _ := blockpool.ParseOverflowPolicy(pc.OverflowPolicy)
	return p
}

// Options converts the settings into pool construction options.
func (pc *PoolConfig) Options() []blockpool.Option {
	return []blockpool.Option{
		blockpool.WithName(pc.Name),
		blockpool.WithMaxCachedFrees(pc.MaxCachedFrees),
		blockpool.WithOverflowPolicy(pc.Policy()),
		blockpool.WithStrictOverflow(pc.StrictOverflow),
	}
}

// Validate checks the benchmark settings. Strategy names are trimmed in place
// so later lookups see the same names validation accepted.
func (bc *BenchConfig) Validate() error {
	if bc.Loops <= 0 {
		return errors.New(errors.ErrorTypeConfig, "loops must be positive").
			WithDetail("loops", bc.Loops)
	}
	if len(bc.Strategies) == 0 {
		return errors.New(errors.ErrorTypeConfig, "at least one strategy is required")
	}
	seen := make(map[string]bool, len(bc.Strategies))
	for i, s := range bc.Strategies {
		name := strings.TrimSpace(s)
		switch name {
		case StrategyHeap, StrategyBlockpool, StrategySyncPool:
		default:
			return errors.New(errors.ErrorTypeConfig, "unknown strategy").
				WithDetail("strategy", s)
		}
		if seen[name] {
			return errors.New(errors.ErrorTypeConfig, "duplicate strategy").
				WithDetail("strategy", name)
		}
		seen[name] = true
		bc.Strategies[i] = name
	}
	switch bc.Output {
	case "", "text", "json":
	default:
		return errors.New(errors.ErrorTypeConfig, "output must be text or json").
			WithDetail("output", bc.Output)
	}
	return nil
}

// MetricsEnabled reports whether pool metrics should be collected.
func (bc *BenchConfig) MetricsEnabled() bool {
	return bc.EnableMetrics || bc.MetricsAddr != ""
}
