package metrics

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// ReadMemory samples process memory from the Go runtime.
func ReadMemory() MemoryUsage {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return MemoryUsage{
		RSS:       ms.Sys,
		HeapTotal: ms.HeapSys,
		HeapUsed:  ms.HeapAlloc,
	}
}

// HeapPercent returns heap usage as a fraction of heap reserved from the OS.
func HeapPercent() float64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.HeapSys == 0 {
		return 0
	}
	return float64(ms.HeapAlloc) / float64(ms.HeapSys)
}

// ReadLoadAverages returns the 1/5/15-minute system load averages. Zeroes on
// platforms without /proc/loadavg.
func ReadLoadAverages() [3]float64 {
	var out [3]float64
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return out
	}
	fields := strings.Fields(string(data))
	for i := 0; i < 3 && i < len(fields); i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return [3]float64{}
		}
		out[i] = v
	}
	return out
}
