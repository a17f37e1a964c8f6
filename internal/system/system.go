// Package system reports host resources for the status endpoint and picks the
// default detector worker count.
package system

import (
	"errors"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

type Snapshot struct {
	LogicalCPUs   int     `json:"logical_cpus"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemTotalMB    uint64  `json:"mem_total_mb"`
	MemUsedMB     uint64  `json:"mem_used_mb"`
	MemUsedPct    float64 `json:"mem_used_percent"`
	Goroutines    int     `json:"goroutines"`
	ProcessHeapMB uint64  `json:"heap_mb"`
}

// DefaultWorkers is the logical CPU count, falling back to GOMAXPROCS when the
// host cannot be queried.
func DefaultWorkers() int {
	n, err := cpu.Counts(true)
	if err != nil || n < 1 {
		return max(runtime.GOMAXPROCS(0), 1)
	}
	return n
}

// Read samples CPU usage since the previous call and current memory. Fields
// that could not be read are left zero and reported in the joined error.
func Read() (Snapshot, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	snap := Snapshot{
		LogicalCPUs:   DefaultWorkers(),
		Goroutines:    runtime.NumGoroutine(),
		ProcessHeapMB: ms.HeapAlloc >> 20,
	}

	var errs []error
	if pct, err := cpu.Percent(0, false); err != nil {
		errs = append(errs, err)
	} else if len(pct) > 0 {
		snap.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err != nil {
		errs = append(errs, err)
	} else {
		snap.MemTotalMB = vm.Total >> 20
		snap.MemUsedMB = vm.Used >> 20
		snap.MemUsedPct = vm.UsedPercent
	}
	return snap, errors.Join(errs...)
}
