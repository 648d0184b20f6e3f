package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/blockpool/pkg/errors"
)

// EnvPrefix prefixes environment overrides, e.g. BLOCKPOOL_POOL_MAX_CACHED_FREES.
const EnvPrefix = "BLOCKPOOL"

// LoadWithViper layers the defaults, an optional config file and BLOCKPOOL_*
// environment variables, in increasing precedence. An empty path skips the file.
func LoadWithViper(path string) (*Config, error) {
	return LoadFromViper(NewViper(), path)
}

// LoadFromViper is LoadWithViper over a caller-supplied instance, typically
// one from NewViper with command-line flags bound on top.
func LoadFromViper(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file").
				WithDetail("path", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewViper returns a viper instance seeded with Default and bound to the
// environment. Callers such as the CLI bind their flags to it.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("pool.name", cfg.Pool.Name)
	v.SetDefault("pool.max_cached_frees", cfg.Pool.MaxCachedFrees)
	v.SetDefault("pool.overflow_policy", cfg.Pool.OverflowPolicy)
	v.SetDefault("pool.strict_overflow", cfg.Pool.StrictOverflow)

	v.SetDefault("bench.loops", cfg.Bench.Loops)
	v.SetDefault("bench.strategies", cfg.Bench.Strategies)
	v.SetDefault("bench.output", cfg.Bench.Output)
	v.SetDefault("bench.enable_metrics", cfg.Bench.EnableMetrics)
	v.SetDefault("bench.metrics_addr", cfg.Bench.MetricsAddr)
	v.SetDefault("bench.enable_tracing", cfg.Bench.EnableTracing)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.encoding", cfg.Log.Encoding)
	v.SetDefault("log.output_paths", cfg.Log.OutputPaths)
}
