package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/agbru/lookforge/internal/format"
	"github.com/agbru/lookforge/internal/progress"
)

const (
	// gaugeLabelWidth is the space a CPU or MEM row spends outside its sparkline.
	gaugeLabelWidth = 17
	// minGaugeHeight is the panel height from which the host gauges are shown.
	minGaugeHeight = 10
	// minBarWidth is the panel width below which the progress bar is hidden.
	minBarWidth = 20
	maxAttemptMarks = 64
)

// ChartModel plots the session's time-based percent, the segment reached,
// the provider attempts made and the host CPU/memory gauges.
type ChartModel struct {
	percent  *Series
	cpu      *Series
	mem      *Series
	attempts []attemptMark

	status   progress.Status
	segment  int
	segments int
	latest   int
	eta      time.Duration

	done   bool
	failed bool
	total  time.Duration
	width  int
	height int
}

// NewChartModel creates an empty chart.
func NewChartModel() ChartModel {
	return ChartModel{
		percent: NewSeries(120),
		cpu:     NewSeries(60),
		mem:     NewSeries(60),
	}
}

// SetSize updates the panel dimensions and the number of samples each series
// keeps.
func (c *ChartModel) SetSize(w, h int) {
	c.width, c.height = w, h
	if n := w - gaugeLabelWidth; n > 0 {
		c.cpu.SetLimit(n)
		c.mem.SetLimit(n)
	}
	if n := w - 4; n > 0 {
		c.percent.SetLimit(n)
	}
}

// ObserveSnapshot plots one snapshot of the session. eta is the remaining
// time shown next to the title.
func (c *ChartModel) ObserveSnapshot(snap progress.Snapshot, eta time.Duration) {
	c.status = snap.Status
	c.segment = snap.CurrentSegment
	c.segments = snap.TotalSegments
	c.latest = snap.PercentComplete
	c.eta = eta
	c.percent.Add(float64(snap.PercentComplete))
}

// ObserveAttempt adds one provider attempt to the attempt strip.
func (c *ChartModel) ObserveAttempt(msg AttemptMsg) {
	c.attempts = append(c.attempts, attemptMark{providerID: msg.ProviderID, failed: msg.Err != nil})
	if extra := len(c.attempts) - maxAttemptMarks; extra > 0 {
		c.attempts = c.attempts[extra:]
	}
}

// UpdateSysStats appends one host sample.
func (c *ChartModel) UpdateSysStats(cpuPercent, memPercent float64) {
	c.cpu.Add(cpuPercent)
	c.mem.Add(memPercent)
}

// SetDone freezes the chart once the generation returned.
func (c *ChartModel) SetDone(total time.Duration, failed bool) {
	c.done, c.failed, c.total = true, failed, total
}

// Reset clears the chart for a new session.
func (c *ChartModel) Reset() {
	c.percent.Clear()
	c.cpu.Clear()
	c.mem.Clear()
	c.attempts = nil
	c.status, c.segment, c.segments, c.latest, c.eta = "", 0, 0, 0, 0
	c.done, c.failed, c.total = false, false, 0
}

func (c ChartModel) summary() string {
	timing := "ETA: " + format.FormatETA(c.eta)
	if c.done {
		timing = "Total: " + format.FormatExecutionDuration(c.total)
	}
	step := "waiting"
	if c.segments > 0 {
		step = fmt.Sprintf("segment %d/%d", c.segment, c.segments)
	}
	return metricLabelStyle.Render(timing) + "  " + metricValueStyle.Render(step)
}

func (c ChartModel) progressBar() string {
	barWidth := c.width - 16
	if c.width < minBarWidth || barWidth <= 0 {
		return ""
	}
	filled := c.latest * barWidth / 100
	style := chartBarStyle
	if c.failed {
		style = statusErrorStyle
	}
	return fmt.Sprintf(" %s%s %3d%%",
		style.Render(strings.Repeat("█", filled)),
		chartEmptyStyle.Render(strings.Repeat("░", barWidth-filled)),
		c.latest)
}

func (c ChartModel) attemptsRow() string {
	if len(c.attempts) == 0 {
		return ""
	}
	last := c.attempts[len(c.attempts)-1]
	strip := AttemptStrip(c.attempts, max(c.width-gaugeLabelWidth-len(last.providerID), 1))
	return fmt.Sprintf(" %s %s %s", metricLabelStyle.Render("Tries"), strip, last.providerID)
}

func gaugeRow(label string, s *Series, render func(...string) string) string {
	return fmt.Sprintf(" %s %s %5.1f%%", metricLabelStyle.Render(label), render(Sparkline(s.Values())), s.Latest())
}

// View renders the chart panel.
func (c ChartModel) View() string {
	var b strings.Builder
	b.WriteString(" " + titleStyle.Render("Session Progress") + "  " + c.summary())

	rows := c.height - 6
	gauges := c.height >= minGaugeHeight
	if gauges {
		rows -= 2
	}
	if rows > 0 {
		for _, line := range PercentColumns(c.percent.Values(), max(c.width-4, 1), rows) {
			b.WriteString("\n " + chartBarStyle.Render(line))
		}
	}
	if bar := c.progressBar(); bar != "" {
		b.WriteString("\n" + bar)
	}
	if row := c.attemptsRow(); row != "" {
		b.WriteString("\n" + row)
	}
	if gauges {
		b.WriteString("\n" + gaugeRow("CPU", c.cpu, cpuSparklineStyle.Render))
		b.WriteString("\n" + gaugeRow("MEM", c.mem, memSparklineStyle.Render))
	}

	return panelStyle.
		Width(max(c.width-2, 0)).
		Height(max(c.height-2, 0)).
		Render(b.String())
}
