// Package performance samples process resources around benchmark runs
package performance

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/ajitpratap0/blockpool/pkg/errors"
)

// ResourceMonitor monitors the resources of the current process
type ResourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time
	mu           sync.RWMutex
}

// NewResourceMonitor creates a resource monitor for the running process
func NewResourceMonitor() (*ResourceMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to open process")
	}

	rm := &ResourceMonitor{process: proc}
	rm.Reset()
	return rm, nil
}

// Reset restarts the CPU accounting window.
func (rm *ResourceMonitor) Reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.startCPUTime = 0
	if cpuTime, err := rm.process.Times(); err == nil {
		rm.startCPUTime = cpuTime.Total()
	}
	rm.startTime = time.Now()
}

// GetResourceUsage returns current resource usage. Fields the platform cannot
// report are left zero.
func (rm *ResourceMonitor) GetResourceUsage() (*ResourceUsage, error) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	usage := &ResourceUsage{
		GoroutineCount: runtime.NumGoroutine(),
	}

	// CPU usage since Reset
	if cpuTime, err := rm.process.Times(); err == nil {
		if elapsed := time.Since(rm.startTime).Seconds(); elapsed > 0 {
			usage.CPUPercent = ((cpuTime.Total() - rm.startCPUTime) / elapsed) * 100
		}
	}

	memInfo, err := rm.process.MemoryInfo()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "failed to read process memory")
	}
	usage.MemoryRSS = memInfo.RSS
	usage.MemoryVMS = memInfo.VMS

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
		usage.SystemMemoryAvailable = vmStat.Available
	}
	if n, err := cpu.Counts(true); err == nil {
		usage.LogicalCPUs = n
	}
	usage.ThreadCount, _ = rm.process.NumThreads()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usage.HeapAlloc = ms.HeapAlloc
	usage.Mallocs = ms.Mallocs
	usage.NumGC = ms.NumGC

	return usage, nil
}

// ResourceUsage contains resource usage information
type ResourceUsage struct {
	CPUPercent            float64 `json:"cpu_percent"`
	MemoryRSS             uint64  `json:"memory_rss"`
	MemoryVMS             uint64  `json:"memory_vms"`
	SystemMemoryPercent   float64 `json:"system_memory_percent"`
	SystemMemoryAvailable uint64  `json:"system_memory_available"`
	LogicalCPUs           int     `json:"logical_cpus"`
	GoroutineCount        int     `json:"goroutines"`
	ThreadCount           int32   `json:"threads"`
	HeapAlloc             uint64  `json:"heap_alloc"`
	Mallocs               uint64  `json:"mallocs"`
	NumGC                 uint32  `json:"num_gc"`
}

// Delta summarizes how resources moved between two samples.
type Delta struct {
	RSSBytes   int64   `json:"rss_delta_bytes"`
	HeapBytes  int64   `json:"heap_delta_bytes"`
	Mallocs    uint64  `json:"mallocs"`
	GCCycles   uint32  `json:"gc_cycles"`
	CPUPercent float64 `json:"cpu_percent"`
}

// Since returns the change from before to u.
func (u *ResourceUsage) Since(before *ResourceUsage) Delta {
	return Delta{
		RSSBytes:   int64(u.MemoryRSS) - int64(before.MemoryRSS),
		HeapBytes:  int64(u.HeapAlloc) - int64(before.HeapAlloc),
		Mallocs:    u.Mallocs - before.Mallocs,
		GCCycles:   u.NumGC - before.NumGC,
		CPUPercent: u.CPUPercent,
	}
}
