package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	apperrors "github.com/agbru/lookforge/internal/errors"
	"github.com/agbru/lookforge/internal/format"
	"github.com/agbru/lookforge/internal/pipeline"
	"github.com/agbru/lookforge/internal/ui"
)

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "< 1µs"
	}
	return format.FormatExecutionDuration(d)
}

// DisplaySteps prints which provider served each phase and how long it took.
// Uses manual padding to correctly handle ANSI color codes.
func DisplaySteps(out io.Writer, steps []pipeline.Step) {
	if len(steps) == 0 {
		return
	}
	fmt.Fprintf(out, "\n--- Steps ---\n")

	maxPhaseLen := 5    // "Phase" header length
	maxProviderLen := 8 // "Provider" header length
	for _, st := range steps {
		maxPhaseLen = max(maxPhaseLen, len(st.Phase))
		maxProviderLen = max(maxProviderLen, len(providerLabel(st.ProviderID)))
	}

	fmt.Fprintf(out, "%sPhase%s%s   %sProvider%s%s   %sDuration%s\n",
		ui.ColorUnderline(), ui.ColorReset(), padRight("", maxPhaseLen-5),
		ui.ColorUnderline(), ui.ColorReset(), padRight("", maxProviderLen-8),
		ui.ColorUnderline(), ui.ColorReset())
	for _, st := range steps {
		label := providerLabel(st.ProviderID)
		fmt.Fprintf(out, "%s%s   %s%s%s%s   %s%s%s\n",
			st.Phase, padRight("", maxPhaseLen-len(st.Phase)),
			ui.ColorBlue(), label, ui.ColorReset(), padRight("", maxProviderLen-len(label)),
			ui.ColorYellow(), formatDuration(st.Duration), ui.ColorReset())
	}
}

func providerLabel(id string) string {
	if id == "" {
		return "local"
	}
	return id
}

// DisplayAttempts prints the table of failed provider attempts in the order
// they were made.
func DisplayAttempts(out io.Writer, attempts []apperrors.Attempt) {
	fmt.Fprintf(out, "\n--- Provider Attempts ---\n")

	maxNameLen := 8 // "Provider" header length
	maxDurationLen := 8
	for _, a := range attempts {
		maxNameLen = max(maxNameLen, len(a.ProviderID))
		maxDurationLen = max(maxDurationLen, len(formatDuration(a.Duration)))
	}

	fmt.Fprintf(out, "%sProvider%s%s   %sDuration%s%s   %sStatus%s\n",
		ui.ColorUnderline(), ui.ColorReset(), padRight("", maxNameLen-8),
		ui.ColorUnderline(), ui.ColorReset(), padRight("", maxDurationLen-8),
		ui.ColorUnderline(), ui.ColorReset())
	for _, a := range attempts {
		duration := formatDuration(a.Duration)
		fmt.Fprintf(out, "%s%s%s%s   %s%s%s%s   %s❌ %s%s\n",
			ui.ColorBlue(), a.ProviderID, ui.ColorReset(), padRight("", maxNameLen-len(a.ProviderID)),
			ui.ColorYellow(), duration, ui.ColorReset(), padRight("", maxDurationLen-len(duration)),
			ui.ColorRed(), a.Message, ui.ColorReset())
	}
}

// padRight returns s followed by length spaces.
func padRight(s string, length int) string {
	if length <= 0 {
		return s
	}
	return s + fmt.Sprintf("%*s", length, "")
}

// HandleError prints a failed generation and returns the process exit code.
func HandleError(err error, duration time.Duration, out io.Writer) int {
	if err == nil {
		return apperrors.ExitSuccess
	}
	var (
		allFailed  apperrors.AllProvidersFailedError
		noProvider apperrors.NoProviderAvailableError
		validErr   apperrors.ValidationError
	)
	switch {
	case errors.As(err, &allFailed):
		fmt.Fprintf(out, "%sEvery provider failed for %s requests after %s.%s\n",
			ui.ColorRed(), allFailed.Kind, formatDuration(duration), ui.ColorReset())
		DisplayAttempts(out, allFailed.Attempts)
	case errors.As(err, &noProvider):
		fmt.Fprintf(out, "%sNo provider is available for %s requests.%s Check the catalog and provider credentials.\n",
			ui.ColorRed(), noProvider.Kind, ui.ColorReset())
	case errors.As(err, &validErr):
		fmt.Fprintf(out, "%sInvalid input:%s %s: %s\n", ui.ColorRed(), ui.ColorReset(), validErr.Field, validErr.Message)
	case apperrors.IsContextError(err):
		fmt.Fprintf(out, "%sGeneration stopped after %s: %v%s\n",
			ui.ColorYellow(), formatDuration(duration), err, ui.ColorReset())
	default:
		fmt.Fprintf(out, "%sGeneration failed:%s %v\n", ui.ColorRed(), ui.ColorReset(), err)
	}
	return apperrors.ExitCodeFor(err)
}
