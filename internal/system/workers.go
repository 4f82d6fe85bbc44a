package system

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Один энкод 1080p с 2x апскейлом занимает порядка 512 МБ.
const bytesPerWorker = 512 << 20

// DefaultWorkers sizes the per-scene worker pool from the logical CPU count,
// capped so that every worker has its share of the available memory.
func DefaultWorkers() int {
	cpus, err := cpu.Counts(true)
	if err != nil || cpus < 1 {
		cpus = runtime.NumCPU()
	}
	workers := cpus / 2
	if workers < 1 {
		workers = 1
	}

	if vm, err := mem.VirtualMemory(); err == nil && vm.Available > 0 {
		byMemory := int(vm.Available / bytesPerWorker)
		if byMemory < 1 {
			byMemory = 1
		}
		if byMemory < workers {
			workers = byMemory
		}
	}
	return workers
}
