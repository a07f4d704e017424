package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/agbru/lookforge/internal/config"
	"github.com/agbru/lookforge/internal/format"
	"github.com/agbru/lookforge/internal/progress"
)

// maxLogEntries bounds the session log.
const maxLogEntries = 500

// LogsModel is the scrollable session log.
type LogsModel struct {
	viewport    viewport.Model
	entries     []string
	lastSegment int
	lastStatus  progress.Status
	width       int
	height      int
	now         func() time.Time
}

// NewLogsModel creates an empty log.
func NewLogsModel() LogsModel {
	return LogsModel{
		viewport: viewport.New(0, 0),
		now:      time.Now,
	}
}

// SetSize updates dimensions.
func (l *LogsModel) SetSize(w, h int) {
	l.width = w
	l.height = h
	l.viewport.Width = max(w-4, 0)
	l.viewport.Height = max(h-3, 0)
	l.refresh()
}

func (l *LogsModel) add(line string) {
	stamp := logTimeStyle.Render(l.now().Format("15:04:05"))
	l.entries = append(l.entries, stamp+" "+line)
	if len(l.entries) > maxLogEntries {
		l.entries = l.entries[len(l.entries)-maxLogEntries:]
	}
	l.refresh()
}

func (l *LogsModel) refresh() {
	l.viewport.SetContent(strings.Join(l.entries, "\n"))
	l.viewport.GotoBottom()
}

// AddExecutionConfig logs the job inputs.
func (l *LogsModel) AddExecutionConfig(cfg config.AppConfig) {
	style := cfg.Style
	if style == "" {
		style = "editorial"
	}
	l.add(fmt.Sprintf("Generating %s in %s style (timeout %s)",
		logProviderStyle.Render(cfg.Output), logProviderStyle.Render(style), cfg.Timeout))
	l.add("character " + cfg.CharacterURL)
	l.add("product   " + cfg.ProductURL)
}

// AddSessionStarted logs the session id.
func (l *LogsModel) AddSessionStarted(msg SessionStartedMsg) {
	l.add(fmt.Sprintf("session %s started (%d steps)", logProviderStyle.Render(msg.SessionID), msg.TotalSegments))
}

// AddSnapshot logs a snapshot when its step or status changed.
func (l *LogsModel) AddSnapshot(snap progress.Snapshot) {
	if snap.CurrentSegment == l.lastSegment && snap.Status == l.lastStatus {
		return
	}
	l.lastSegment, l.lastStatus = snap.CurrentSegment, snap.Status
	l.add(fmt.Sprintf("%s %s",
		logProgressStyle.Render(fmt.Sprintf("[%d/%d]", snap.CurrentSegment, snap.TotalSegments)),
		snap.Message))
}

// AddAttempt logs one provider attempt.
func (l *LogsModel) AddAttempt(msg AttemptMsg) {
	took := format.FormatExecutionDuration(msg.Duration)
	if msg.Err != nil {
		l.add(fmt.Sprintf("%s %s %s: %v (%s)", logErrorStyle.Render("✗"), msg.Kind,
			logProviderStyle.Render(msg.ProviderID), msg.Err, took))
		return
	}
	l.add(fmt.Sprintf("%s %s %s (%s)", logSuccessStyle.Render("✓"), msg.Kind,
		logProviderStyle.Render(msg.ProviderID), took))
}

// AddOutcome logs the prompt and the generated assets.
func (l *LogsModel) AddOutcome(msg OutcomeMsg) {
	if msg.Outcome.Prompt != "" {
		l.add("prompt: " + msg.Outcome.Prompt)
	}
	for _, a := range msg.Outcome.Assets {
		where := a.URL
		if where == "" {
			where = a.Location
		}
		l.add(fmt.Sprintf("%s %s %s", logSuccessStyle.Render("asset"), a.Kind, where))
	}
}

// AddError logs a failed generation.
func (l *LogsModel) AddError(msg ErrorMsg) {
	l.add(logErrorStyle.Render(fmt.Sprintf("generation failed after %s: %v",
		format.FormatExecutionDuration(msg.Duration), msg.Err)))
}

// Reset clears the log.
func (l *LogsModel) Reset() {
	l.entries = nil
	l.lastSegment = 0
	l.lastStatus = ""
	l.refresh()
}

// Update forwards scroll keys to the viewport.
func (l *LogsModel) Update(msg tea.Msg) {
	l.viewport, _ = l.viewport.Update(msg)
}

// renderToHeight renders the panel at exactly h lines.
func (l LogsModel) renderToHeight(h int) string {
	vp := l.viewport
	vp.Height = max(h-3, 0)
	content := " " + titleStyle.Render("Session Log") + "\n" + vp.View()
	return panelStyle.
		Width(max(l.width-2, 0)).
		Height(max(h-2, 0)).
		Render(content)
}
