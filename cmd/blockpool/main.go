package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/blockpool/internal/bench"
	"github.com/ajitpratap0/blockpool/pkg/config"
	"github.com/ajitpratap0/blockpool/pkg/logger"
	"github.com/ajitpratap0/blockpool/pkg/metrics"
	"github.com/ajitpratap0/blockpool/pkg/observability"
	"github.com/ajitpratap0/blockpool/pkg/performance"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "blockpool",
		Short: "blockpool - fixed-size object pool benchmarks",
		Long: `blockpool drives the fixed-size block pool: it benchmarks pooled against
non-pooled allocation of short-lived objects and demonstrates what happens
when more objects are deleted than the free cache can hold.`,
		SilenceUsage: true,
	}

	var configFile string
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file (optional)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("blockpool v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(newBenchCmd(&configFile))
	root.AddCommand(newExceedCmd(&configFile))
	root.AddCommand(newConfigCmd(&configFile))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// poolFlags registers the pool settings shared by every command and binds
// them to v under the pool.* keys.
func poolFlags(fs *pflag.FlagSet, v *viper.Viper) {
	def := config.Default().Pool
	fs.String("pool-name", def.Name, "Pool name used in logs and metrics")
	fs.Int("max-cached-frees", def.MaxCachedFrees, "Free cache bound; 0 disables caching")
	fs.String("overflow-policy", def.OverflowPolicy, "What a release does when the cache is full (return_to_system, fail)")
	fs.Bool("strict-overflow", def.StrictOverflow, "Reject a fail-policy release before unlinking the block")

	bind(v, fs, map[string]string{
		"pool.name":             "pool-name",
		"pool.max_cached_frees": "max-cached-frees",
		"pool.overflow_policy":  "overflow-policy",
		"pool.strict_overflow":  "strict-overflow",
	})
}

func bind(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, flag := range keys {
		_ = v.BindPFlag(key, fs.Lookup(flag))
	}
}

func loadConfig(v *viper.Viper, path string) (*config.Config, error) {
	cfg, err := config.LoadFromViper(v, path)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// profileFiles names optional pprof outputs for a bench run.
type profileFiles struct {
	cpu    string
	memory string
}

func newBenchCmd(configFile *string) *cobra.Command {
	v := config.NewViper()
	prof := &profileFiles{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Compare allocation strategies on a short-lived object workload",
		Long: `Run the same workload through each allocation strategy and report timings.
Each loop creates three small builders, two of which overlap in lifetime.

Example:
  blockpool bench --loops 1048576 --strategy heap,blockpool --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, *configFile)
			if err != nil {
				return err
			}
			return runBench(cmd.Context(), cfg, prof)
		},
	}

	def := config.Default().Bench
	fs := cmd.Flags()
	fs.Int("loops", def.Loops, "Workload iterations per strategy")
	fs.StringSlice("strategy", def.Strategies, "Strategies to run (heap, blockpool, syncpool)")
	fs.StringP("output", "o", def.Output, "Report format (text, json)")
	fs.Bool("enable-metrics", def.EnableMetrics, "Collect pool metrics")
	fs.String("metrics-addr", def.MetricsAddr, "Serve Prometheus metrics on this address, e.g. :9090")
	fs.Bool("trace", def.EnableTracing, "Export one span per strategy to stderr")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&prof.cpu, "cpuprofile", "", "Write a CPU profile of the run to file")
	fs.StringVar(&prof.memory, "memprofile", "", "Write a heap profile to file after the run")
	poolFlags(fs, v)

	bind(v, fs, map[string]string{
		"bench.loops":          "loops",
		"bench.strategies":     "strategy",
		"bench.output":         "output",
		"bench.enable_metrics": "enable-metrics",
		"bench.metrics_addr":   "metrics-addr",
		"bench.enable_tracing": "trace",
		"log.level":            "log-level",
	})
	return cmd
}

func runBench(ctx context.Context, cfg *config.Config, prof *profileFiles) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Get().With(
		zap.String("component", "blockpool-cli"),
		zap.String("pool", cfg.Pool.Name),
	)

	opts := []bench.Option{bench.WithLogger(log)}

	if monitor, err := performance.NewResourceMonitor(); err != nil {
		log.Warn("resource monitoring unavailable", zap.Error(err))
	} else {
		opts = append(opts, bench.WithResourceMonitor(monitor))
	}

	if cfg.Bench.MetricsEnabled() {
		collector := metrics.NewPoolCollector()
		if err := prometheus.Register(collector); err != nil {
			return fmt.Errorf("failed to register pool metrics: %w", err)
		}
		opts = append(opts, bench.WithCollector(collector))

		if cfg.Bench.MetricsAddr != "" {
			srv, _, err := serveMetrics(cfg.Bench.MetricsAddr, log)
			if err != nil {
				return err
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}

	if cfg.Bench.EnableTracing {
		tc := observability.DefaultTracingConfig()
		tc.ServiceVersion = version
		tc.Writer = os.Stderr
		if _, err := observability.InitTracing(tc); err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := observability.Shutdown(shutdownCtx); err != nil {
				log.Warn("failed to flush traces", zap.Error(err))
			}
		}()
	}

	runner, err := bench.NewRunner(cfg, opts...)
	if err != nil {
		return err
	}

	if prof.cpu != "" {
		f, err := os.Create(prof.cpu)
		if err != nil {
			return fmt.Errorf("failed to create CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	report, err := runner.Run(ctx)
	if err != nil {
		log.Error("benchmark failed", zap.Error(err))
		return err
	}
	_ = logger.Sync()

	if prof.memory != "" {
		if err := writeHeapProfile(prof.memory); err != nil {
			return err
		}
		log.Info("heap profile written", zap.String("file", prof.memory))
	}

	return report.Write(os.Stdout, cfg.Bench.Output)
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create memory profile: %w", err)
	}
	defer f.Close()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write memory profile: %w", err)
	}
	return nil
}

// serveMetrics listens on addr and serves /metrics in the background. The
// listener is opened up front so a bad address fails the command.
func serveMetrics(addr string, log *zap.Logger) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv, ln.Addr(), nil
}

func newExceedCmd(configFile *string) *cobra.Command {
	v := config.NewViper()

	cmd := &cobra.Command{
		Use:   "exceed",
		Short: "Delete more objects than the free cache can hold",
		Long: `Allocate max-cached-frees+1 objects from a fresh pool, then delete them all.
Under return_to_system the extra block goes back to the allocator; under fail
the last delete is rejected.

Example:
  blockpool exceed --max-cached-frees 1024 --overflow-policy fail`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, *configFile)
			if err != nil {
				return err
			}

			res, err := bench.Exceed(cmd.Context(), cfg.Pool)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pool %q: %d objects, max_cached_frees=%d, overflow=%s\n",
				cfg.Pool.Name, res.Objects, cfg.Pool.MaxCachedFrees, cfg.Pool.OverflowPolicy)
			fmt.Fprintf(out, "deleted: %d, rejected: %d, returned to system: %d\n",
				res.Deleted, res.Rejected, res.Stats.SystemFrees)
			if res.Err != nil {
				fmt.Fprintf(out, "error: %v\n", res.Err)
			}
			return nil
		},
	}
	poolFlags(cmd.Flags(), v)
	return cmd
}

func newConfigCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWithViper(*configFile)
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
