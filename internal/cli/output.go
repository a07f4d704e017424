// # Naming Conventions
//
// Functions in this package follow consistent naming patterns based on their behavior:
//
//   - Display* functions write formatted output to an [io.Writer].
//     They handle presentation logic and colorization.
//     Examples: [DisplayOutcome], [DisplayQuietOutcome], [DisplayProgress].
//
//   - Format* functions return a formatted string without performing I/O.
//     Examples: [FormatProgressLine], [FormatAssetLine].
//
//   - Write* functions write data to files on the filesystem.
//     Examples: [WriteOutcomeToFile].

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/agbru/lookforge/internal/format"
	"github.com/agbru/lookforge/internal/pipeline"
	"github.com/agbru/lookforge/internal/progress"
	"github.com/agbru/lookforge/internal/store"
	"github.com/agbru/lookforge/internal/ui"
)

// OutputConfig holds configuration for result output.
type OutputConfig struct {
	// OutputFile is the path of the JSON report (empty for no file output).
	OutputFile string
	// Quiet prints only the asset locations.
	Quiet bool
}

// Report is the JSON document written by WriteOutcomeToFile.
type Report struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	Outcome     pipeline.Outcome `json:"outcome"`
	Session     progress.View    `json:"session"`
}

// WriteOutcomeToFile writes the outcome and the final session state as JSON.
func WriteOutcomeToFile(outcome pipeline.Outcome, session progress.View, config OutputConfig) error {
	if config.OutputFile == "" {
		return nil
	}

	dir := filepath.Dir(config.OutputFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(config.OutputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Report{GeneratedAt: time.Now().UTC(), Outcome: outcome, Session: session}); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// assetLocation prefers the public URL over the blob location.
func assetLocation(a store.Asset) string {
	if a.URL != "" {
		return a.URL
	}
	return a.Location
}

// FormatAssetLine describes one persisted asset.
func FormatAssetLine(a store.Asset) string {
	line := fmt.Sprintf("%-5s %s%s%s", a.Kind, ui.ColorCyan(), assetLocation(a), ui.ColorReset())
	if a.ProviderID != "" {
		line += fmt.Sprintf(" via %s%s%s", ui.ColorBlue(), a.ProviderID, ui.ColorReset())
	}
	if a.Size > 0 {
		line += fmt.Sprintf(" (%s bytes)", format.FormatNumberString(strconv.Itoa(a.Size)))
	}
	return line
}

// DisplayQuietOutcome prints one asset location per line.
func DisplayQuietOutcome(out io.Writer, outcome pipeline.Outcome) {
	for _, a := range outcome.Assets {
		fmt.Fprintln(out, assetLocation(a))
	}
}

// DisplayOutcome prints the analyses, the composed prompt, the step table and
// the generated assets.
func DisplayOutcome(out io.Writer, outcome pipeline.Outcome, session progress.View) {
	fmt.Fprintf(out, "\n%s--- Generation Complete ---%s\n", ui.ColorBold(), ui.ColorReset())
	fmt.Fprintf(out, "Session: %s%s%s", ui.ColorCyan(), outcome.SessionID, ui.ColorReset())
	if session.TotalTimeMs != nil {
		fmt.Fprintf(out, " in %s%s%s", ui.ColorYellow(),
			format.FormatExecutionDuration(time.Duration(*session.TotalTimeMs)*time.Millisecond), ui.ColorReset())
	}
	fmt.Fprintln(out)

	if outcome.CharacterAnalysis != "" {
		fmt.Fprintf(out, "\nCharacter: %s\n", outcome.CharacterAnalysis)
	}
	if outcome.ProductAnalysis != "" {
		fmt.Fprintf(out, "Product:   %s\n", outcome.ProductAnalysis)
	}
	if outcome.Prompt != "" {
		fmt.Fprintf(out, "\nPrompt: %s%s%s\n", ui.ColorMagenta(), outcome.Prompt, ui.ColorReset())
	}

	DisplaySteps(out, outcome.Steps)
	if len(session.Errors) > 0 {
		fmt.Fprintf(out, "\n%sRecovered errors:%s\n", ui.ColorYellow(), ui.ColorReset())
		for _, e := range session.Errors {
			fmt.Fprintf(out, "  [%s] %s\n", e.Phase, e.Message)
		}
	}

	fmt.Fprintf(out, "\n%sAssets:%s\n", ui.ColorUnderline(), ui.ColorReset())
	if len(outcome.Assets) == 0 {
		fmt.Fprintln(out, "  (none)")
	}
	for _, a := range outcome.Assets {
		fmt.Fprintf(out, "  %s\n", FormatAssetLine(a))
	}
}

// DisplayOutcomeWithConfig displays an outcome according to config and writes
// the JSON report when requested.
func DisplayOutcomeWithConfig(out io.Writer, outcome pipeline.Outcome, session progress.View, config OutputConfig) error {
	if config.Quiet {
		DisplayQuietOutcome(out, outcome)
	} else {
		DisplayOutcome(out, outcome, session)
	}

	if config.OutputFile != "" {
		if err := WriteOutcomeToFile(outcome, session, config); err != nil {
			return err
		}
		if !config.Quiet {
			fmt.Fprintf(out, "\n%s✓ Report saved to: %s%s%s\n",
				ui.ColorGreen(), ui.ColorCyan(), config.OutputFile, ui.ColorReset())
		}
	}
	return nil
}
