package tui

import (
	"math"
	"strings"
)

// blocks are the eight bar heights, lowest first.
var blocks = []rune("▁▂▃▄▅▆▇█")

// Series keeps the latest percentage samples of one dashboard gauge, oldest
// first. Samples are clamped to [0, 100].
type Series struct {
	samples []float64
	limit   int
}

// NewSeries creates a series holding at most limit samples.
func NewSeries(limit int) *Series {
	return &Series{limit: max(limit, 1)}
}

// Add appends v, dropping the oldest sample when the series is full.
func (s *Series) Add(v float64) {
	s.samples = append(s.samples, clampPercent(v))
	s.trim()
}

// SetLimit changes the capacity and keeps the newest samples that fit.
func (s *Series) SetLimit(limit int) {
	s.limit = max(limit, 1)
	s.trim()
}

func (s *Series) trim() {
	if extra := len(s.samples) - s.limit; extra > 0 {
		s.samples = append(s.samples[:0], s.samples[extra:]...)
	}
}

// Values returns a copy of the samples.
func (s *Series) Values() []float64 { return append([]float64(nil), s.samples...) }

// Len returns the number of samples held.
func (s *Series) Len() int { return len(s.samples) }

// Latest returns the newest sample, or 0.
func (s *Series) Latest() float64 {
	if len(s.samples) == 0 {
		return 0
	}
	return s.samples[len(s.samples)-1]
}

// Clear drops every sample.
func (s *Series) Clear() { s.samples = s.samples[:0] }

func clampPercent(v float64) float64 { return math.Min(math.Max(v, 0), 100) }

// Sparkline renders percentages as a single row of bars.
func Sparkline(values []float64) string {
	var b strings.Builder
	for _, v := range values {
		level := int(math.Round(clampPercent(v) / 100 * float64(len(blocks)-1)))
		b.WriteRune(blocks[level])
	}
	return b.String()
}

// PercentColumns draws values as a column chart rows lines tall and width
// cells wide, newest value in the rightmost column. Each line covers an equal
// band of the 0-100 range and partially filled bands use the lower blocks.
func PercentColumns(values []float64, width, rows int) []string {
	if width <= 0 || rows <= 0 {
		return nil
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	pad := width - len(values)
	band := 100 / float64(rows)

	lines := make([]string, rows)
	for r := range rows {
		floor := float64(rows-1-r) * band
		var b strings.Builder
		b.WriteString(strings.Repeat(" ", pad))
		for _, v := range values {
			eighths := int(math.Round((clampPercent(v) - floor) / band * 8))
			switch {
			case eighths <= 0:
				b.WriteRune(' ')
			case eighths >= 8:
				b.WriteRune('█')
			default:
				b.WriteRune(blocks[eighths-1])
			}
		}
		lines[r] = b.String()
	}
	return lines
}

// attemptMark is one provider attempt shown on the chart.
type attemptMark struct {
	providerID string
	failed     bool
}

// AttemptStrip renders one glyph per attempt, newest last, keeping at most
// width glyphs: ● for an attempt that served the request, ✗ for a failure.
func AttemptStrip(marks []attemptMark, width int) string {
	if width <= 0 {
		return ""
	}
	if len(marks) > width {
		marks = marks[len(marks)-width:]
	}
	var b strings.Builder
	for _, m := range marks {
		if m.failed {
			b.WriteString(attemptFailStyle.Render("✗"))
		} else {
			b.WriteString(attemptOKStyle.Render("●"))
		}
	}
	return b.String()
}
