package cli

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sebas5384/now-php-extra/pkg/lambda"
	"github.com/sebas5384/now-php-extra/pkg/pipeline"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleWarning for warning messages.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleKey         = lipgloss.NewStyle().Foreground(colorGray).Width(12)
)

const (
	iconSuccess = "✓"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
)

// =============================================================================
// Status Output
// =============================================================================

// printSuccess prints a success message.
func printSuccess(format string, args ...any) {
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

// printWarning prints a warning message.
func printWarning(format string, args ...any) {
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

// printInfo prints an info/status message.
func printInfo(format string, args ...any) {
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints a detail line (indented).
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

// printFile prints a file output line.
func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

// printKeyValue prints a labeled value.
func printKeyValue(key, value string) {
	fmt.Println(styleKey.Render(key) + " " + StyleValue.Render(value))
}

// =============================================================================
// Build Summaries
// =============================================================================

// printBuild prints the summary of a finished build.
func printBuild(result *pipeline.Result, entry string, fn *lambda.Lambda, out string) {
	printSuccess("Built %s", StyleTitle.Render(entry))
	printKeyValue("handler", fn.Handler)
	printKeyValue("runtime", fn.Runtime)
	printKeyValue("size", lambda.FormatSize(fn.Size()))
	printKeyValue("digest", fn.Digest)
	printKeyValue("files", fmt.Sprintf("%d", fn.Files.Len()))
	if result.Stats.Installed {
		printKeyValue("composer", result.Config.ComposerVersion+" ("+result.Stats.InstallTime.Round(time.Millisecond).String()+")")
	}

	statics := result.Statics()
	if statics.Len() == 0 {
		printInfo("No static assets")
	} else {
		printInfo("%d static assets", statics.Len())
	}
	printDetail("Output: %s", out)
}

// printAnalysis prints what a build would produce.
func printAnalysis(a *pipeline.Analysis) {
	printInfo("Lambda entry %s", StyleTitle.Render(a.Entry))
	printDetail("%d project files", a.Files.Len())

	if a.Statics.Len() == 0 {
		printWarning("No files match the static rules")
		return
	}
	printInfo("%d static assets", a.Statics.Len())
	for _, k := range a.Statics.Keys() {
		printFile(k)
	}
}
