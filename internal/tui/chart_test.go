package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/agbru/lookforge/internal/progress"
)

func snapshotAt(status progress.Status, segment, percent int) progress.Snapshot {
	return progress.Snapshot{
		SessionID:       "s-1",
		Status:          status,
		CurrentSegment:  segment,
		TotalSegments:   4,
		PercentComplete: percent,
	}
}

func TestChartModel_SessionStarted(t *testing.T) {
	chart := NewChartModel()
	chart.SetSize(70, 15)

	view := chart.View()
	for _, want := range []string{"Session Progress", "waiting", "ETA:"} {
		if !strings.Contains(view, want) {
			t.Errorf("empty chart missing %q", want)
		}
	}

	chart.ObserveSnapshot(snapshotAt(progress.StatusStarted, 0, 0), 2*time.Minute)
	if chart.status != progress.StatusStarted || chart.percent.Len() != 1 {
		t.Errorf("status = %q samples = %d", chart.status, chart.percent.Len())
	}
	if view := chart.View(); !strings.Contains(view, "segment 0/4") {
		t.Errorf("view missing segment counter:\n%s", view)
	}
}

func TestChartModel_RunningSession(t *testing.T) {
	chart := NewChartModel()
	chart.SetSize(50, 15)

	chart.ObserveSnapshot(snapshotAt(progress.StatusRunning, 1, 10), 90*time.Second)
	chart.ObserveSnapshot(snapshotAt(progress.StatusRunning, 2, 45), 40*time.Second)

	if chart.segment != 2 || chart.latest != 45 || chart.eta != 40*time.Second {
		t.Errorf("segment = %d latest = %d eta = %s", chart.segment, chart.latest, chart.eta)
	}
	if got := chart.percent.Values(); len(got) != 2 || got[0] != 10 || got[1] != 45 {
		t.Errorf("percent series = %v", got)
	}
	view := chart.View()
	if !strings.Contains(view, "segment 2/4") || !strings.Contains(view, " 45%") {
		t.Errorf("view missing running state:\n%s", view)
	}
}

func TestChartModel_FallbackAttempt(t *testing.T) {
	chart := NewChartModel()
	chart.SetSize(60, 15)

	chart.ObserveAttempt(AttemptMsg{ProviderID: "painter", Err: errors.New("quota")})
	chart.ObserveAttempt(AttemptMsg{ProviderID: "backup"})

	if len(chart.attempts) != 2 || !chart.attempts[0].failed || chart.attempts[1].failed {
		t.Fatalf("attempts = %+v", chart.attempts)
	}
	view := chart.View()
	for _, want := range []string{"Tries", "✗", "●", "backup"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestChartModel_AttemptsAreBounded(t *testing.T) {
	chart := NewChartModel()
	for range maxAttemptMarks + 5 {
		chart.ObserveAttempt(AttemptMsg{ProviderID: "painter", Err: errors.New("down")})
	}
	chart.ObserveAttempt(AttemptMsg{ProviderID: "backup"})
	if len(chart.attempts) != maxAttemptMarks {
		t.Errorf("kept %d attempts", len(chart.attempts))
	}
	if last := chart.attempts[len(chart.attempts)-1]; last.providerID != "backup" {
		t.Errorf("newest attempt = %+v", last)
	}
}

func TestChartModel_Completed(t *testing.T) {
	chart := NewChartModel()
	chart.SetSize(50, 15)
	chart.ObserveSnapshot(snapshotAt(progress.StatusCompleted, 4, 100), 0)
	chart.SetDone(95*time.Second, false)

	view := chart.View()
	if !strings.Contains(view, "Total: 1m35s") || strings.Contains(view, "ETA:") {
		t.Errorf("completed chart should show the total time:\n%s", view)
	}
	if !strings.Contains(view, "100%") || strings.Contains(view, "░") {
		t.Errorf("completed bar should be full:\n%s", view)
	}
	if chart.failed {
		t.Error("completed run marked failed")
	}
}

func TestChartModel_Failed(t *testing.T) {
	chart := NewChartModel()
	chart.SetSize(50, 15)
	chart.ObserveSnapshot(snapshotAt(progress.StatusRunning, 3, 60), 20*time.Second)
	chart.ObserveAttempt(AttemptMsg{ProviderID: "painter", Err: errors.New("overloaded")})
	chart.ObserveSnapshot(snapshotAt(progress.StatusFailed, 3, 60), 0)
	chart.SetDone(12*time.Second, true)

	if !chart.failed || chart.status != progress.StatusFailed {
		t.Errorf("failed = %v status = %q", chart.failed, chart.status)
	}
	view := chart.View()
	if !strings.Contains(view, "Total: 12.0s") || !strings.Contains(view, " 60%") {
		t.Errorf("failed chart should keep the last percent:\n%s", view)
	}
}

func TestChartModel_ResetForRegeneration(t *testing.T) {
	chart := NewChartModel()
	chart.SetSize(50, 15)
	chart.ObserveSnapshot(snapshotAt(progress.StatusRunning, 2, 50), time.Minute)
	chart.ObserveAttempt(AttemptMsg{ProviderID: "painter"})
	chart.UpdateSysStats(25, 60)
	chart.SetDone(time.Minute, true)

	chart.Reset()

	if chart.percent.Len() != 0 || chart.cpu.Len() != 0 || chart.mem.Len() != 0 || len(chart.attempts) != 0 {
		t.Error("series and attempts should be empty after reset")
	}
	if chart.done || chart.failed || chart.segments != 0 || chart.latest != 0 {
		t.Errorf("state not cleared: %+v", chart)
	}
}

func TestChartModel_HostGauges(t *testing.T) {
	chart := NewChartModel()
	chart.SetSize(50, 15)
	chart.UpdateSysStats(25, 60)
	chart.UpdateSysStats(30, 62)

	if chart.cpu.Latest() != 30 || chart.mem.Latest() != 62 || chart.cpu.Len() != 2 {
		t.Errorf("cpu = %v mem = %v", chart.cpu.Values(), chart.mem.Values())
	}
	view := chart.View()
	for _, want := range []string{"CPU", "MEM", "30.0%", "62.0%"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	// Short panels drop the gauges and the bar stays when wide enough.
	chart.SetSize(50, 8)
	if view := chart.View(); strings.Contains(view, "CPU") {
		t.Error("gauges should be hidden below the minimum height")
	}
	chart.SetSize(10, 8)
	if chart.progressBar() != "" {
		t.Error("narrow panel should hide the progress bar")
	}
}

func TestChartModel_SetSizeBoundsSeries(t *testing.T) {
	chart := NewChartModel()
	for i := range 80 {
		chart.UpdateSysStats(float64(i), float64(i))
	}
	chart.SetSize(50, 15)
	if want := 50 - gaugeLabelWidth; chart.cpu.Len() != want || chart.mem.Len() != want {
		t.Errorf("cpu = %d mem = %d, want %d", chart.cpu.Len(), chart.mem.Len(), want)
	}
	if chart.cpu.Latest() != 79 {
		t.Errorf("latest cpu sample = %v", chart.cpu.Latest())
	}
}
