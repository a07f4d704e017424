package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/agbru/lookforge/internal/ui"
)

// Dashboard styles. They are derived from the ui palette by initTUIStyles and
// rebuilt by Run once the theme flags are known.
var (
	panelStyle  lipgloss.Style
	headerStyle lipgloss.Style
	titleStyle  lipgloss.Style

	versionStyle lipgloss.Style
	elapsedStyle lipgloss.Style
	sessionStyle lipgloss.Style

	logTimeStyle     lipgloss.Style
	logProviderStyle lipgloss.Style
	logProgressStyle lipgloss.Style
	logSuccessStyle  lipgloss.Style
	logErrorStyle    lipgloss.Style

	metricLabelStyle lipgloss.Style
	metricValueStyle lipgloss.Style

	chartBarStyle     lipgloss.Style
	chartEmptyStyle   lipgloss.Style
	attemptOKStyle    lipgloss.Style
	attemptFailStyle  lipgloss.Style
	cpuSparklineStyle lipgloss.Style
	memSparklineStyle lipgloss.Style

	footerKeyStyle     lipgloss.Style
	footerDescStyle    lipgloss.Style
	statusRunningStyle lipgloss.Style
	statusPausedStyle  lipgloss.Style
	statusDoneStyle    lipgloss.Style
	statusErrorStyle   lipgloss.Style
)

func init() {
	initTUIStyles()
}

func fg(c lipgloss.TerminalColor) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func initTUIStyles() {
	t := ui.GetCurrentTUITheme()

	panelStyle = fg(t.Text).
		Background(t.Bg).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border)
	headerStyle = fg(t.Accent).Background(t.Bg).Bold(true).Padding(0, 1)
	titleStyle = fg(t.Accent).Bold(true)

	versionStyle = fg(t.Dim)
	elapsedStyle = fg(t.Accent)
	sessionStyle = fg(t.Info)

	logTimeStyle = fg(t.Dim)
	logProviderStyle = fg(t.Info)
	logProgressStyle = fg(t.Accent)
	logSuccessStyle = fg(t.Success)
	logErrorStyle = fg(t.Error)

	metricLabelStyle = fg(t.Dim)
	metricValueStyle = fg(t.Accent).Bold(true)

	chartBarStyle = fg(t.Accent)
	chartEmptyStyle = fg(t.Dim)
	attemptOKStyle = fg(t.Success)
	attemptFailStyle = fg(t.Error)
	cpuSparklineStyle = fg(t.Accent)
	memSparklineStyle = fg(t.Warning)

	footerKeyStyle = fg(t.Accent).Bold(true)
	footerDescStyle = fg(t.Dim)
	statusRunningStyle = fg(t.Success).Bold(true)
	statusPausedStyle = fg(t.Warning).Bold(true)
	statusDoneStyle = fg(t.Accent).Bold(true)
	statusErrorStyle = fg(t.Error).Bold(true)
}
