package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// FooterModel renders the key hints and the run status.
type FooterModel struct {
	width  int
	done   bool
	failed bool
	paused bool
}

// NewFooterModel creates a footer.
func NewFooterModel() FooterModel { return FooterModel{} }

func (f *FooterModel) SetWidth(w int)       { f.width = w }
func (f *FooterModel) SetDone(done bool)    { f.done = done }
func (f *FooterModel) SetError(failed bool) { f.failed = failed }
func (f *FooterModel) SetPaused(p bool)     { f.paused = p }

func (f FooterModel) status() string {
	switch {
	case f.failed:
		return statusErrorStyle.Render("FAILED")
	case f.done:
		return statusDoneStyle.Render("DONE")
	case f.paused:
		return statusPausedStyle.Render("PAUSED")
	}
	return statusRunningStyle.Render("GENERATING")
}

// View renders the footer line.
func (f FooterModel) View() string {
	hints := []struct{ key, desc string }{
		{"q", "quit"}, {"space", "pause"}, {"r", "regenerate"}, {"↑↓", "scroll"},
	}
	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = footerKeyStyle.Render(h.key) + " " + footerDescStyle.Render(h.desc)
	}
	left := strings.Join(parts, "  ")
	right := f.status()
	gap := max(f.width-lipgloss.Width(left)-lipgloss.Width(right)-2, 1)
	return " " + left + strings.Repeat(" ", gap) + right + " "
}
