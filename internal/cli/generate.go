package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/agbru/lookforge/internal/config"
	"github.com/agbru/lookforge/internal/provider"
	"github.com/agbru/lookforge/internal/ui"
)

// PrintExecutionConfig displays the inputs of a one-shot generation.
func PrintExecutionConfig(cfg config.AppConfig, out io.Writer) {
	fmt.Fprintf(out, "--- Execution Configuration ---\n")
	fmt.Fprintf(out, "Generating a %s%s%s look in %s%s%s style with a timeout of %s%s%s.\n",
		ui.ColorMagenta(), cfg.Output, ui.ColorReset(),
		ui.ColorMagenta(), styleLabel(cfg.Style), ui.ColorReset(),
		ui.ColorYellow(), cfg.Timeout, ui.ColorReset())
	fmt.Fprintf(out, "Character: %s%s%s\n", ui.ColorCyan(), cfg.CharacterURL, ui.ColorReset())
	fmt.Fprintf(out, "Product:   %s%s%s\n", ui.ColorCyan(), cfg.ProductURL, ui.ColorReset())
	fmt.Fprintf(out, "Environment: %s%d%s logical processors, Go %s%s%s.\n",
		ui.ColorCyan(), runtime.NumCPU(), ui.ColorReset(), ui.ColorCyan(), runtime.Version(), ui.ColorReset())
}

func styleLabel(style string) string {
	if style == "" {
		return "editorial"
	}
	return style
}

// PrintProviders displays the registered providers in priority order with
// their current availability.
func PrintProviders(statuses []provider.Status, out io.Writer) {
	fmt.Fprintf(out, "Providers:\n")
	if len(statuses) == 0 {
		fmt.Fprintf(out, "  %s(none registered)%s\n", ui.ColorRed(), ui.ColorReset())
	}
	for _, st := range statuses {
		kinds := make([]string, len(st.Kinds))
		for i, k := range st.Kinds {
			kinds[i] = string(k)
		}
		state := fmt.Sprintf("%savailable%s", ui.ColorGreen(), ui.ColorReset())
		if !st.Available {
			state = fmt.Sprintf("%sunavailable%s", ui.ColorRed(), ui.ColorReset())
		}
		fmt.Fprintf(out, "  %2d %s%s%s [%s] %s\n",
			st.Priority, ui.ColorBlue(), st.ID, ui.ColorReset(), strings.Join(kinds, ","), state)
	}
	fmt.Fprintf(out, "\n--- Starting Execution ---\n")
}
