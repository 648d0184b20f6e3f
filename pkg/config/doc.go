// Package config provides configuration for the blockpool tools.
//
// A single Config groups the pool settings, the benchmark workload and the
// logger. Defaults come from Default and match blockpool.DefaultConfig: a free
// cache of 1024 blocks and the return_to_system overflow policy.
//
// # Loading
//
// Two loaders are provided. Load reads plain YAML into any value, with
// ${VAR_NAME} substitution:
//
//	cfg := config.Default()
//	if err := config.Load("blockpool.yaml", cfg); err != nil {
//		log.Fatal(err)
//	}
//
// LoadWithViper layers defaults, an optional file and BLOCKPOOL_* environment
// variables, so BLOCKPOOL_POOL_MAX_CACHED_FREES=64 overrides the file:
//
//	cfg, err := config.LoadWithViper("blockpool.yaml")
//
// # File Format
//
//	pool:
//	  name: builders
//	  max_cached_frees: 1024
//	  overflow_policy: return_to_system   # or fail
//	  strict_overflow: false
//	bench:
//	  loops: 1000000
//	  strategies: [heap, blockpool, syncpool]
//	  output: text
//	  metrics_addr: ${METRICS_ADDR}
//	log:
//	  level: info
//	  encoding: json
//
// PoolConfig.Options turns the pool section into blockpool options:
//
//	p := blockpool.New[Message](cfg.Pool.Options()...)
package config
