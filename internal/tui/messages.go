package tui

import (
	"time"

	"github.com/agbru/lookforge/internal/pipeline"
	"github.com/agbru/lookforge/internal/progress"
	"github.com/agbru/lookforge/internal/provider"
)

// TickMsg drives periodic sampling of runtime and system stats.
type TickMsg time.Time

// SessionStartedMsg announces the session id of a freshly prepared job.
type SessionStartedMsg struct {
	SessionID     string
	TotalSegments int
	Generation    uint64
}

// SnapshotMsg carries one progress snapshot of the running session.
type SnapshotMsg struct {
	Snapshot progress.Snapshot
}

// AttemptMsg reports one provider attempt made by the orchestrator.
type AttemptMsg struct {
	ProviderID string
	Kind       provider.Kind
	Err        error
	Duration   time.Duration
}

// OutcomeMsg carries the result of a successful generation.
type OutcomeMsg struct {
	Outcome pipeline.Outcome
}

// ErrorMsg carries a failed generation.
type ErrorMsg struct {
	Err      error
	Duration time.Duration
}

// MemStatsMsg is a runtime memory sample.
type MemStatsMsg struct {
	Alloc        uint64
	HeapInuse    uint64
	NumGC        uint32
	PauseTotalNs uint64
	NumGoroutine int
}

// SysStatsMsg is a system-wide CPU and memory sample.
type SysStatsMsg struct {
	CPUPercent float64
	MemPercent float64
}

// GenerationCompleteMsg is sent once the pipeline returns.
type GenerationCompleteMsg struct {
	ExitCode   int
	Generation uint64
}

// ContextCancelledMsg is sent when the dashboard context ends.
type ContextCancelledMsg struct {
	Err        error
	Generation uint64
}
