// Package sysmon samples host-wide CPU and memory usage for the studio
// dashboard and the server's startup log.
package sysmon

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// Stats holds a single snapshot of system-wide resource usage.
type Stats struct {
	CPUPercent float64 // 0.0 .. 100.0
	MemPercent float64 // 0.0 .. 100.0
}

// String formats the snapshot for log lines.
func (s Stats) String() string {
	return fmt.Sprintf("cpu %.1f%% mem %.1f%%", s.CPUPercent, s.MemPercent)
}

// Sampler reads host statistics. The zero value is not usable; use NewSampler.
type Sampler struct {
	cpuPercent func(ctx context.Context) ([]float64, error)
	memPercent func(ctx context.Context) (float64, error)
}

// NewSampler returns a sampler backed by gopsutil.
func NewSampler() *Sampler {
	return &Sampler{
		cpuPercent: func(ctx context.Context) ([]float64, error) {
			// interval 0 reports the delta since the previous call.
			return cpu.PercentWithContext(ctx, 0, false)
		},
		memPercent: func(ctx context.Context) (float64, error) {
			v, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil || v == nil {
				return 0, err
			}
			return v.UsedPercent, nil
		},
	}
}

// Sample collects one snapshot. Readings that fail are left at zero.
func (s *Sampler) Sample(ctx context.Context) Stats {
	var st Stats
	if pcts, err := s.cpuPercent(ctx); err == nil && len(pcts) > 0 {
		st.CPUPercent = clampPercent(pcts[0])
	}
	if p, err := s.memPercent(ctx); err == nil {
		st.MemPercent = clampPercent(p)
	}
	return st
}

var defaultSampler = NewSampler()

// Sample collects a snapshot with the default sampler.
func Sample(ctx context.Context) Stats {
	return defaultSampler.Sample(ctx)
}

func clampPercent(p float64) float64 {
	return min(max(p, 0), 100)
}
