package bench

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ajitpratap0/blockpool/pkg/blockpool"
	"github.com/ajitpratap0/blockpool/pkg/config"
	"github.com/ajitpratap0/blockpool/pkg/errors"
	"github.com/ajitpratap0/blockpool/pkg/json"
	"github.com/ajitpratap0/blockpool/pkg/performance"
	"github.com/ajitpratap0/blockpool/pkg/pool"
)

// Report is the outcome of one benchmark run.
type Report struct {
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Loops     int               `json:"loops"`
	Pool      config.PoolConfig `json:"pool"`
	Results   []Result          `json:"results"`
}

// Result holds the measurements of one strategy.
type Result struct {
	Strategy    string             `json:"strategy"`
	Loops       int                `json:"loops"`
	Duration    time.Duration      `json:"duration_ns"`
	NsPerLoop   float64            `json:"ns_per_loop"`
	LoopsPerSec float64            `json:"loops_per_sec"`
	Pool        *blockpool.Stats   `json:"pool_stats,omitempty"`
	SyncPool    *pool.Stats        `json:"syncpool_stats,omitempty"`
	Resources   *performance.Delta `json:"resources,omitempty"`
}

// Result returns the result for strategy, if it ran.
func (r *Report) Result(strategy string) (Result, bool) {
	for _, res := range r.Results {
		if res.Strategy == strategy {
			return res, true
		}
	}
	return Result{}, false
}

// Write renders the report to w in the given format ("text" or "json").
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case "", "text":
		return r.writeText(w)
	case "json":
		return json.MarshalToWriter(w, r, "  ")
	default:
		return errors.New(errors.ErrorTypeConfig, "unsupported report format").
			WithDetail("format", format)
	}
}

func (r *Report) writeText(w io.Writer) error {
	fmt.Fprintf(w, "run %s: %d loops, pool %q (max_cached_frees=%d, overflow=%s)\n\n",
		r.RunID, r.Loops, r.Pool.Name, r.Pool.MaxCachedFrees, r.Pool.OverflowPolicy)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "strategy\tduration\tns/loop\tloops/s\thit rate\tsystem allocs\tmallocs\t")
	for _, res := range r.Results {
		hitRate, allocs := "-", "-"
		switch {
		case res.Pool != nil:
			hitRate = fmt.Sprintf("%.2f%%", res.Pool.HitRate()*100)
			allocs = fmt.Sprintf("%d", res.Pool.SystemAllocs)
		case res.SyncPool != nil:
			if gets := res.SyncPool.Hits + res.SyncPool.Misses; gets > 0 {
				hitRate = fmt.Sprintf("%.2f%%", float64(res.SyncPool.Hits)/float64(gets)*100)
			}
			allocs = fmt.Sprintf("%d", res.SyncPool.Allocated)
		}
		mallocs := "-"
		if res.Resources != nil {
			mallocs = fmt.Sprintf("%d", res.Resources.Mallocs)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%.0f\t%s\t%s\t%s\t\n",
			res.Strategy, res.Duration.Round(time.Microsecond), res.NsPerLoop, res.LoopsPerSec,
			hitRate, allocs, mallocs)
	}
	return tw.Flush()
}
