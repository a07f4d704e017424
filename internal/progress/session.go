package progress

import (
	"maps"
	"math"
	"slices"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusStarted   Status = "started"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// rank orders statuses along the only permitted direction of travel.
func (s Status) rank() int {
	switch s {
	case StatusStarted:
		return 0
	case StatusRunning:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s.rank() >= 0 }

// Terminal reports whether s is completed or failed.
func (s Status) Terminal() bool { return s.rank() == 2 }

const (
	// DefaultTotalSegments is used when a session is created without a step count.
	DefaultTotalSegments = 3
	// SegmentEstimate is the expected duration of one step.
	SegmentEstimate = 120 * time.Second
	// EstimateOverhead is added once to every derived estimate.
	EstimateOverhead = 30 * time.Second
	// DefaultRetention is how long finalized sessions stay readable.
	DefaultRetention = 5 * time.Minute
)

// Config describes the shape of a new session.
type Config struct {
	// TotalSegments is the expected number of steps. Defaults to 3.
	TotalSegments int
	// EstimatedTotalTime is the expected wall-clock duration. Defaults to
	// TotalSegments*2m + 30s.
	EstimatedTotalTime time.Duration
}

func (c Config) withDefaults() Config {
	if c.TotalSegments <= 0 {
		c.TotalSegments = DefaultTotalSegments
	}
	if c.EstimatedTotalTime <= 0 {
		c.EstimatedTotalTime = time.Duration(c.TotalSegments)*SegmentEstimate + EstimateOverhead
	}
	return c
}

// ErrorRecord is one non-terminal error observed during a session.
type ErrorRecord struct {
	Phase     string    `json:"phase"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the progress state of one multi-step job. Values returned by the
// Tracker are copies; mutating them has no effect on the tracked state.
type Session struct {
	ID                 string
	StartTime          time.Time
	Status             Status
	CurrentSegment     int
	TotalSegments      int
	EstimatedTotalTime time.Duration
	Phase              string
	Message            string
	PhaseTimings       map[string]time.Duration
	Errors             []ErrorRecord
	// Error is the terminal error message of a failed session.
	Error       string
	CompletedAt time.Time
	// TotalTime is set once the session is completed or failed.
	TotalTime time.Duration
}

// Finished reports whether the session has reached a terminal status.
func (s Session) Finished() bool { return s.Status.Terminal() }

func (s Session) clone() Session {
	s.PhaseTimings = maps.Clone(s.PhaseTimings)
	s.Errors = slices.Clone(s.Errors)
	return s
}

// View is the JSON representation of a session served by the API.
// Durations are expressed in milliseconds.
type View struct {
	SessionID            string           `json:"sessionId"`
	Status               Status           `json:"status"`
	CurrentSegment       int              `json:"currentSegment"`
	TotalSegments        int              `json:"totalSegments"`
	StartTime            time.Time        `json:"startTime"`
	EstimatedTotalTimeMs int64            `json:"estimatedTotalTimeMs"`
	Phase                string           `json:"phase,omitempty"`
	Message              string           `json:"message,omitempty"`
	PhaseTimingsMs       map[string]int64 `json:"phaseTimingsMs,omitempty"`
	Errors               []ErrorRecord    `json:"errors,omitempty"`
	Error                string           `json:"error,omitempty"`
	CompletedAt          *time.Time       `json:"completedAt,omitempty"`
	TotalTimeMs          *int64           `json:"totalTimeMs,omitempty"`
}

// View converts the session to its API representation.
func (s Session) View() View {
	v := View{
		SessionID:            s.ID,
		Status:               s.Status,
		CurrentSegment:       s.CurrentSegment,
		TotalSegments:        s.TotalSegments,
		StartTime:            s.StartTime,
		EstimatedTotalTimeMs: s.EstimatedTotalTime.Milliseconds(),
		Phase:                s.Phase,
		Message:              s.Message,
		Errors:               slices.Clone(s.Errors),
		Error:                s.Error,
	}
	if len(s.PhaseTimings) > 0 {
		v.PhaseTimingsMs = make(map[string]int64, len(s.PhaseTimings))
		for k, d := range s.PhaseTimings {
			v.PhaseTimingsMs[k] = d.Milliseconds()
		}
	}
	if s.Finished() {
		completed := s.CompletedAt
		total := s.TotalTime.Milliseconds()
		v.CompletedAt = &completed
		v.TotalTimeMs = &total
	}
	return v
}

// Snapshot is the point-in-time summary published to subscribers.
type Snapshot struct {
	SessionID        string    `json:"sessionId"`
	Status           Status    `json:"status"`
	CurrentSegment   int       `json:"currentSegment"`
	TotalSegments    int       `json:"totalSegments"`
	ElapsedSeconds   int64     `json:"elapsedSeconds"`
	RemainingSeconds int64     `json:"remainingSeconds"`
	PercentComplete  int       `json:"percentComplete"`
	Message          string    `json:"message"`
	Timestamp        time.Time `json:"timestamp"`
}

// snapshotAt computes the time-based estimate for s at now. The percentage is
// derived from elapsed time only and can disagree with the segment counters.
func snapshotAt(s *Session, now time.Time) Snapshot {
	elapsed := max(now.Sub(s.StartTime), 0)
	remaining := max(s.EstimatedTotalTime-elapsed, 0)
	percent := 100
	if s.EstimatedTotalTime > 0 {
		percent = int(math.Min(100, math.Round(float64(elapsed)/float64(s.EstimatedTotalTime)*100)))
	}
	return Snapshot{
		SessionID:        s.ID,
		Status:           s.Status,
		CurrentSegment:   s.CurrentSegment,
		TotalSegments:    s.TotalSegments,
		ElapsedSeconds:   int64(elapsed / time.Second),
		RemainingSeconds: int64(math.Ceil(remaining.Seconds())),
		PercentComplete:  percent,
		Message:          s.Message,
		Timestamp:        now,
	}
}
