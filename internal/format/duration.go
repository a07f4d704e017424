package format

import (
	"fmt"
	"time"
)

// FormatExecutionDuration renders a step or session duration. Sub-second
// values use a single unit (µs or ms); provider calls usually take seconds
// and are shown with tenths, and anything past a minute as XmYs.
func FormatExecutionDuration(d time.Duration) string {
	switch {
	case d < 0:
		return "0ms"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	d = d.Round(time.Second)
	if h := d / time.Hour; h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, (d%time.Hour)/time.Minute, (d%time.Minute)/time.Second)
	}
	return fmt.Sprintf("%dm%02ds", d/time.Minute, (d%time.Minute)/time.Second)
}
