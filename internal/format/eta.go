package format

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// maxETA caps estimates derived from very slow progress rates.
const maxETA = 24 * time.Hour

// ProgressState holds the completion fraction of each step of a job.
type ProgressState struct {
	mu         sync.Mutex
	progresses []float64
	numSteps   int
}

// NewProgressState creates a state tracking numSteps independent steps.
func NewProgressState(numSteps int) *ProgressState {
	if numSteps < 0 {
		numSteps = 0
	}
	return &ProgressState{progresses: make([]float64, numSteps), numSteps: numSteps}
}

// Update sets the completion fraction of one step. Out of range indexes are
// ignored and values are clamped to [0, 1].
func (p *ProgressState) Update(index int, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if index < 0 || index >= p.numSteps {
		return
	}
	p.progresses[index] = clamp01(value)
}

// CalculateAverage returns the mean completion across all steps.
func (p *ProgressState) CalculateAverage() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.average()
}

func (p *ProgressState) average() float64 {
	if p.numSteps == 0 {
		return 0
	}
	var sum float64
	for _, v := range p.progresses {
		sum += v
	}
	return sum / float64(p.numSteps)
}

// ProgressWithETA adds an observed completion rate on top of ProgressState.
// The rate is an exponential moving average of progress per second.
type ProgressWithETA struct {
	*ProgressState
	startTime    time.Time
	lastUpdate   time.Time
	lastProgress float64
	progressRate float64
}

// NewProgressWithETA creates a tracker for numSteps steps starting now.
func NewProgressWithETA(numSteps int) *ProgressWithETA {
	now := time.Now()
	return &ProgressWithETA{
		ProgressState: NewProgressState(numSteps),
		startTime:     now,
		lastUpdate:    now,
	}
}

// UpdateWithETA records one step's progress and returns the overall progress
// with the current estimate of the remaining time.
func (p *ProgressWithETA) UpdateWithETA(index int, value float64) (float64, time.Duration) {
	p.Update(index, value)

	p.mu.Lock()
	defer p.mu.Unlock()
	progress := p.average()
	now := time.Now()
	if dt := now.Sub(p.lastUpdate).Seconds(); dt > 0.1 && progress > p.lastProgress {
		rate := (progress - p.lastProgress) / dt
		if p.progressRate == 0 {
			p.progressRate = rate
		} else {
			p.progressRate = 0.3*rate + 0.7*p.progressRate
		}
		p.lastUpdate = now
		p.lastProgress = progress
	}
	return progress, p.eta(progress)
}

// GetETA returns the remaining-time estimate, or 0 while no rate is known.
func (p *ProgressWithETA) GetETA() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eta(p.average())
}

// Elapsed returns the time since the tracker was created.
func (p *ProgressWithETA) Elapsed() time.Duration { return time.Since(p.startTime) }

func (p *ProgressWithETA) eta(progress float64) time.Duration {
	if p.progressRate <= 0 || progress >= 1 {
		return 0
	}
	seconds := (1 - progress) / p.progressRate
	eta := time.Duration(seconds * float64(time.Second))
	if eta > maxETA || eta < 0 {
		return maxETA
	}
	return eta
}

// FormatETA renders a remaining-time estimate for humans.
func FormatETA(eta time.Duration) string {
	switch {
	case eta <= 0:
		return "calculating..."
	case eta < time.Second:
		return "< 1s"
	case eta < time.Minute:
		return fmt.Sprintf("%ds", int(eta.Seconds()))
	case eta < time.Hour:
		m := int(eta.Minutes())
		s := int(eta.Seconds()) % 60
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(eta.Hours())
	m := int(eta.Minutes()) % 60
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh%dm", h, m)
}

// ProgressBar renders progress as a bar of the given length.
func ProgressBar(progress float64, length int) string {
	if length <= 0 {
		return ""
	}
	filled := int(clamp01(progress) * float64(length))
	return strings.Repeat("█", filled) + strings.Repeat("░", length-filled)
}

// FormatProgressBarWithETA combines a bar, the percentage and the ETA.
func FormatProgressBarWithETA(progress float64, eta time.Duration, width int) string {
	progress = clamp01(progress)
	return fmt.Sprintf("[%s] %5.1f%% ETA: %s", ProgressBar(progress, width), progress*100, FormatETA(eta))
}

// FormatNumberString inserts thousands separators into a decimal string.
func FormatNumberString(s string) string {
	if s == "" {
		return ""
	}
	sign := ""
	if s[0] == '-' {
		sign, s = "-", s[1:]
	}
	n := len(s)
	if n <= 3 {
		return sign + s
	}
	var b strings.Builder
	b.Grow(n + n/3)
	head := n % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(s[:head])
	for i := head; i < n; i += 3 {
		b.WriteByte(',')
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
