package cli

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/agbru/lookforge/internal/format"
	"github.com/agbru/lookforge/internal/progress"
)

const (
	// ProgressRefreshRate defines the refresh frequency of the progress bar.
	ProgressRefreshRate = 200 * time.Millisecond
	// ProgressBarWidth defines the width in characters of the progress bar.
	ProgressBarWidth = 30
)

// Spinner is an interface that abstracts the behavior of a terminal spinner.
// This allows for the decoupling of the `DisplayProgress` function from a
// specific spinner implementation, facilitating easier testing and maintenance.
type Spinner interface {
	// Start begins the spinner animation.
	Start()
	// Stop halts the spinner animation.
	Stop()
	// UpdateSuffix sets the text that is displayed after the spinner.
	UpdateSuffix(suffix string)
}

// realSpinner adapts spinner.Spinner to the Spinner interface.
type realSpinner struct {
	s *spinner.Spinner
}

func (rs *realSpinner) Start() { rs.s.Start() }

func (rs *realSpinner) Stop() { rs.s.Stop() }

func (rs *realSpinner) UpdateSuffix(suffix string) {
	rs.s.Lock()
	rs.s.Suffix = suffix
	rs.s.Unlock()
}

var newSpinner = func(out io.Writer, options ...spinner.Option) Spinner {
	options = append([]spinner.Option{spinner.WithWriter(out)}, options...)
	s := spinner.New(spinner.CharSets[11], ProgressRefreshRate, options...)
	return &realSpinner{s}
}

// liveEstimate advances a snapshot to now. Snapshots are only published on
// state changes, so elapsed and remaining time drift between two of them.
func liveEstimate(snap progress.Snapshot, now time.Time) (percent float64, remaining time.Duration) {
	drift := max(now.Sub(snap.Timestamp), 0)
	remaining = max(time.Duration(snap.RemainingSeconds)*time.Second-drift, 0)
	elapsed := time.Duration(snap.ElapsedSeconds)*time.Second + drift
	total := elapsed + remaining
	percent = float64(snap.PercentComplete) / 100
	if total > 0 && !snap.Status.Terminal() {
		percent = min(float64(elapsed)/float64(total), 1)
	}
	if snap.Status == progress.StatusCompleted {
		percent, remaining = 1, 0
	}
	return percent, remaining
}

// FormatProgressLine renders the spinner suffix for a snapshot.
func FormatProgressLine(snap progress.Snapshot, now time.Time) string {
	percent, remaining := liveEstimate(snap, now)
	line := fmt.Sprintf(" step %d/%d %s", snap.CurrentSegment, snap.TotalSegments,
		format.FormatProgressBarWithETA(percent, remaining, ProgressBarWidth))
	if snap.Message != "" {
		line += "  " + snap.Message
	}
	return line
}

// DisplayProgress renders the snapshots of one session behind a spinner until
// the channel closes or a terminal snapshot arrives. The time estimate keeps
// moving between snapshots.
func DisplayProgress(wg *sync.WaitGroup, snaps <-chan progress.Snapshot, out io.Writer) {
	defer wg.Done()

	s := newSpinner(out)
	s.UpdateSuffix(" waiting for the first update...")
	s.Start()
	defer s.Stop()

	ticker := time.NewTicker(ProgressRefreshRate)
	defer ticker.Stop()

	var (
		last progress.Snapshot
		seen bool
	)
	for {
		select {
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			last, seen = snap, true
			s.UpdateSuffix(FormatProgressLine(last, time.Now()))
			if snap.Status.Terminal() {
				return
			}
		case <-ticker.C:
			if seen {
				s.UpdateSuffix(FormatProgressLine(last, time.Now()))
			}
		}
	}
}
