package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/lookforge/internal/format"
)

// HeaderModel renders the top bar: title, version, session and elapsed time.
type HeaderModel struct {
	startTime time.Time
	endTime   time.Time
	version   string
	sessionID string
	width     int
}

// NewHeaderModel creates a new header.
func NewHeaderModel(version string) HeaderModel {
	return HeaderModel{
		startTime: time.Now(),
		version:   version,
	}
}

// SetSession shows the id of the running session.
func (h *HeaderModel) SetSession(id string) {
	h.sessionID = id
}

// SetDone freezes the elapsed timer at the current time.
func (h *HeaderModel) SetDone() {
	h.endTime = time.Now()
}

// Reset restarts the elapsed timer and forgets the session.
func (h *HeaderModel) Reset() {
	h.startTime = time.Now()
	h.endTime = time.Time{}
	h.sessionID = ""
}

// SetWidth updates the available width.
func (h *HeaderModel) SetWidth(w int) {
	h.width = w
}

// Elapsed returns the time since the session started, frozen once done.
func (h HeaderModel) Elapsed() time.Duration {
	if !h.endTime.IsZero() {
		return h.endTime.Sub(h.startTime)
	}
	return time.Since(h.startTime)
}

// View renders the header.
func (h HeaderModel) View() string {
	titleText := "Lookforge Studio"
	if h.version != "" && h.version != "dev" {
		titleText += " " + h.version
	}
	title := titleStyle.Render(titleText)

	pipe := versionStyle.Render(" | ")
	elapsed := elapsedStyle.Render(fmt.Sprintf("Elapsed: %s", format.FormatExecutionDuration(h.Elapsed())))

	leftPart := title + pipe + elapsed
	if h.sessionID != "" {
		leftPart += pipe + sessionStyle.Render("Session: "+h.sessionID)
	}
	leftLen := lipgloss.Width(leftPart)

	innerWidth := max(h.width-2, 0)
	gap := max(innerWidth-leftLen, 0)

	return headerStyle.Width(h.width).Render(leftPart + strings.Repeat(" ", gap))
}
