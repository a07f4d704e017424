// Package ui holds the colour themes shared by the CLI and the TUI dashboard.
// ANSI themes back the Color* accessors used by plain terminal output; the
// lipgloss palettes back the dashboard styles.
package ui
