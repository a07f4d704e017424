package ui

import (
	"fmt"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds the ANSI escape sequences used by the line-oriented CLI output.
// Every field of NoColorTheme is empty.
type Theme struct {
	Name      string
	Primary   string
	Secondary string
	Success   string
	Warning   string
	Error     string
	Info      string
	Bold      string
	Underline string
	Reset     string
}

// fg256 returns the escape sequence selecting xterm-256 foreground color n.
func fg256(n int) string { return fmt.Sprintf("\033[38;5;%dm", n) }

// palette builds a theme from six xterm-256 color numbers, in field order.
func palette(name string, primary, secondary, success, warning, errColor, info int) Theme {
	return Theme{
		Name:      name,
		Primary:   fg256(primary),
		Secondary: fg256(secondary),
		Success:   fg256(success),
		Warning:   fg256(warning),
		Error:     fg256(errColor),
		Info:      fg256(info),
		Bold:      "\033[1m",
		Underline: "\033[4m",
		Reset:     "\033[0m",
	}
}

var (
	// DarkTheme suits dark terminal backgrounds.
	DarkTheme = palette("dark", 39, 51, 82, 220, 196, 141)
	// LightTheme suits light terminal backgrounds.
	LightTheme = palette("light", 27, 30, 28, 130, 124, 54)
	// StudioTheme is the rose and ivory palette shared with the dashboard.
	StudioTheme = palette("studio", 204, 117, 114, 222, 167, 183)
	// NoColorTheme disables styling; selected by --no-color or NO_COLOR.
	NoColorTheme = Theme{Name: "none"}

	themes = map[string]Theme{
		DarkTheme.Name:    DarkTheme,
		LightTheme.Name:   LightTheme,
		StudioTheme.Name:  StudioTheme,
		NoColorTheme.Name: NoColorTheme,
	}

	themeMu      sync.RWMutex
	currentTheme = DarkTheme
)

// TUITheme is the dashboard palette, expressed as lipgloss colors.
type TUITheme struct {
	Bg      lipgloss.TerminalColor
	Text    lipgloss.TerminalColor
	Border  lipgloss.TerminalColor
	Accent  lipgloss.TerminalColor
	Success lipgloss.TerminalColor
	Warning lipgloss.TerminalColor
	Error   lipgloss.TerminalColor
	Dim     lipgloss.TerminalColor
	Info    lipgloss.TerminalColor
}

var (
	// DarkTUITheme is rose on charcoal.
	DarkTUITheme = TUITheme{
		Bg:      lipgloss.Color("#16141A"),
		Text:    lipgloss.Color("#F3EDE4"),
		Border:  lipgloss.Color("#C9577A"),
		Accent:  lipgloss.Color("#F48FB1"),
		Success: lipgloss.Color("#8FBF8F"),
		Warning: lipgloss.Color("#E8C07D"),
		Error:   lipgloss.Color("#E06C5F"),
		Dim:     lipgloss.Color("#6E6873"),
		Info:    lipgloss.Color("#8FB8DE"),
	}

	// NoColorTUITheme renders with the terminal's default colors.
	NoColorTUITheme = TUITheme{
		Bg: lipgloss.NoColor{}, Text: lipgloss.NoColor{}, Border: lipgloss.NoColor{},
		Accent: lipgloss.NoColor{}, Success: lipgloss.NoColor{}, Warning: lipgloss.NoColor{},
		Error: lipgloss.NoColor{}, Dim: lipgloss.NoColor{}, Info: lipgloss.NoColor{},
	}
)

// GetCurrentTUITheme returns the dashboard palette for the active theme.
func GetCurrentTUITheme() TUITheme {
	if GetCurrentTheme().Name == NoColorTheme.Name {
		return NoColorTUITheme
	}
	return DarkTUITheme
}

// GetCurrentTheme returns the active theme.
func GetCurrentTheme() Theme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTheme
}

// SetCurrentTheme replaces the active theme. Tests use it to restore state.
func SetCurrentTheme(t Theme) {
	themeMu.Lock()
	currentTheme = t
	themeMu.Unlock()
}

// SetTheme activates the theme called name ("dark", "light", "studio" or
// "none"). Unknown names select the dark theme.
func SetTheme(name string) {
	t, ok := themes[name]
	if !ok {
		t = DarkTheme
	}
	SetCurrentTheme(t)
}

// InitTheme picks the theme for this process: colors are off when noColor is
// set or the NO_COLOR environment variable exists (https://no-color.org/).
func InitTheme(noColor bool) {
	if _, set := os.LookupEnv("NO_COLOR"); noColor || set {
		SetCurrentTheme(NoColorTheme)
		return
	}
	SetCurrentTheme(DarkTheme)
}
