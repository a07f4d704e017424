package metrics

import "runtime"

// MemorySnapshot holds a point-in-time reading of the process runtime.
type MemorySnapshot struct {
	HeapAlloc    uint64 // bytes in use by the application
	HeapInuse    uint64 // bytes in in-use heap spans
	Sys          uint64 // total bytes obtained from the OS
	NumGC        uint32
	PauseTotalNs uint64
	Goroutines   int
}

// MemoryCollector reads runtime memory statistics for the studio dashboard.
// The /metrics endpoint gets the same figures from the Go collector.
type MemoryCollector struct {
	read func(*runtime.MemStats)
}

// NewMemoryCollector creates a collector reading the live runtime.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{read: runtime.ReadMemStats}
}

// Snapshot reads current memory statistics.
func (mc *MemoryCollector) Snapshot() MemorySnapshot {
	var m runtime.MemStats
	mc.read(&m)
	return MemorySnapshot{
		HeapAlloc:    m.HeapAlloc,
		HeapInuse:    m.HeapInuse,
		Sys:          m.Sys,
		NumGC:        m.NumGC,
		PauseTotalNs: m.PauseTotalNs,
		Goroutines:   runtime.NumGoroutine(),
	}
}
