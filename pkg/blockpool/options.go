package blockpool

import (
	"strings"

	"github.com/ajitpratap0/blockpool/pkg/errors"
)

// DefaultMaxCachedFrees is the free cache bound used when none is configured.
const DefaultMaxCachedFrees = 1024

// OverflowPolicy decides what Release does when the free cache is full.
type OverflowPolicy uint8

const (
	// ReturnToSystem hands the excess block back to the Allocator.
	ReturnToSystem OverflowPolicy = iota
	// Fail rejects the release with ErrCapacityExceeded.
	Fail
)

// String returns the canonical config spelling of the policy.
func (p OverflowPolicy) String() string {
	switch p {
	case ReturnToSystem:
		return "return_to_system"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// ParseOverflowPolicy accepts "return_to_system" (or "return", "free") and "fail" (or "throw").
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "return_to_system", "return", "free":
		return ReturnToSystem, nil
	case "fail", "throw":
		return Fail, nil
	default:
		return ReturnToSystem, errors.New(errors.ErrorTypeConfig, "unknown overflow policy").
			WithDetail("value", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p OverflowPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *OverflowPolicy) UnmarshalText(text []byte) error {
	v, err := ParseOverflowPolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Config holds the policy knobs of a pool. It is fixed once the pool is built.
type Config struct {
	// Name labels the pool in metrics and logs.
	Name string
	// MaxCachedFrees bounds the free cache. Zero disables caching.
	MaxCachedFrees int
	// OverflowPolicy applies when a release finds the cache full.
	OverflowPolicy OverflowPolicy
	// StrictOverflow makes the Fail policy reject before unlinking the block.
	StrictOverflow bool
}

// DefaultConfig returns a Config with MaxCachedFrees = 1024 and ReturnToSystem.
func DefaultConfig() Config {
	return Config{
		MaxCachedFrees: DefaultMaxCachedFrees,
		OverflowPolicy: ReturnToSystem,
	}
}

// Option configures a pool at construction.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithName sets the pool name.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// WithMaxCachedFrees sets the free cache bound. Negative values are treated as zero.
func WithMaxCachedFrees(n int) Option {
	return func(c *Config) {
		if n < 0 {
			n = 0
		}
		c.MaxCachedFrees = n
	}
}

// WithOverflowPolicy sets the overflow policy.
func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(c *Config) {
		c.OverflowPolicy = p
	}
}

// WithStrictOverflow makes Fail reject a release before the block is unlinked.
func WithStrictOverflow(strict bool) Option {
	return func(c *Config) {
		c.StrictOverflow = strict
	}
}
