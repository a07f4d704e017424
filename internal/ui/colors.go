package ui

// Color accessors return the escape code of the active theme so that
// callers never hold on to a stale palette.

// ColorReset clears all formatting.
func ColorReset() string { return GetCurrentTheme().Reset }

// ColorBold starts bold text.
func ColorBold() string { return GetCurrentTheme().Bold }

// ColorUnderline starts underlined text.
func ColorUnderline() string { return GetCurrentTheme().Underline }

// ColorRed is used for failures.
func ColorRed() string { return GetCurrentTheme().Error }

// ColorGreen is used for successful outcomes.
func ColorGreen() string { return GetCurrentTheme().Success }

// ColorYellow is used for warnings and durations.
func ColorYellow() string { return GetCurrentTheme().Warning }

// ColorBlue is used for provider names.
func ColorBlue() string { return GetCurrentTheme().Primary }

// ColorMagenta is used for prompts and styles.
func ColorMagenta() string { return GetCurrentTheme().Info }

// ColorCyan is used for URLs and paths.
func ColorCyan() string { return GetCurrentTheme().Secondary }
