package cli

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/devicelab-dev/dash-runner/pkg/executor"
	"github.com/devicelab-dev/dash-runner/pkg/report"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Slow step threshold in milliseconds (5 seconds)
const slowThresholdMs = 5000

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		colorsEnabled = false
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// statusSymbol returns the marker and color of a step status.
func statusSymbol(status report.Status, durationMs int64, compound bool) (string, string) {
	switch status {
	case report.StatusPassed:
		if durationMs >= slowThresholdMs && !compound {
			return "⚠", colorYellow
		}
		return "✓", colorGreen
	case report.StatusWarned:
		return "⚠", colorYellow
	case report.StatusSkipped:
		return "-", colorCyan
	default:
		return "✗", colorRed
	}
}

func isCompoundStep(desc string) bool {
	return strings.HasPrefix(desc, "repeat:")
}

// Live progress callbacks

func onFlowStart(flowIdx, totalFlows int, name, file string) {
	fmt.Printf("\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), flowIdx+1, totalFlows, color(colorReset),
		color(colorBold), name, color(colorReset), file)
	fmt.Println(strings.Repeat("─", 60))
}

func onStepComplete(idx int, desc string, status report.Status, durationMs int64, errMsg string) {
	printStep("    ", desc, status, durationMs, errMsg)
}

func onNestedStep(depth int, desc string, status report.Status, durationMs int64, errMsg string) {
	printStep(strings.Repeat("  ", 2+depth+1), desc, status, durationMs, errMsg)
}

func printStep(indent, desc string, status report.Status, durationMs int64, errMsg string) {
	symbol, symbolColor := statusSymbol(status, durationMs, isCompoundStep(desc))
	durColor := ""
	if symbol == "⚠" {
		durColor = color(colorYellow)
	}
	fmt.Printf("%s%s%s%s %s %s(%s)%s\n",
		indent, color(symbolColor), symbol, color(colorReset),
		desc, durColor, formatDuration(durationMs), color(colorReset))
	if errMsg != "" && status != report.StatusPassed {
		fmt.Printf("%s  %s╰─%s %s\n", indent, color(colorGray), color(colorReset), errMsg)
	}
}

func onFlowEnd(name string, status report.Status, durationMs int64) {
	symbol, symbolColor := statusSymbol(status, 0, true)
	fmt.Printf("%s%s %s%s %s%s%s\n",
		color(symbolColor), symbol, color(colorReset), name,
		color(colorGray), formatDuration(durationMs), color(colorReset))
}

func statusLabel(status report.Status) (string, string) {
	switch status {
	case report.StatusFailed:
		return "✗ FAIL", colorRed
	case report.StatusErrored:
		return "✗ ERR", colorRed
	case report.StatusSkipped:
		return "- SKIP", colorCyan
	default:
		return "✓ PASS", colorGreen
	}
}

func printSummary(result *executor.RunResult) {
	totalSteps := 0
	passedSteps := 0
	failedSteps := 0
	skippedSteps := 0
	warnedSteps := 0
	for _, fr := range result.FlowResults {
		totalSteps += fr.StepsTotal
		passedSteps += fr.StepsPassed
		failedSteps += fr.StepsFailed
		skippedSteps += fr.StepsSkipped
		warnedSteps += fr.StepsWarned
	}

	fmt.Println()
	if passedSteps > 0 {
		fmt.Printf("  %s%d steps passing%s (%s)\n", color(colorGreen), passedSteps, color(colorReset), formatDuration(result.Duration))
	}
	if warnedSteps > 0 {
		fmt.Printf("  %s%d optional steps failing%s\n", color(colorYellow), warnedSteps, color(colorReset))
	}
	if failedSteps > 0 {
		fmt.Printf("  %s%d steps failing%s\n", color(colorRed), failedSteps, color(colorReset))
	}
	if skippedSteps > 0 {
		fmt.Printf("  %s%d steps skipped%s\n", color(colorCyan), skippedSteps, color(colorReset))
	}
	fmt.Println()

	tableWidth := 92
	fmt.Println(strings.Repeat("═", tableWidth))
	fmt.Printf("  %-42s %6s %7s %6s %6s %6s %10s\n", "Flow", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Println(strings.Repeat("─", tableWidth))

	for _, fr := range result.FlowResults {
		status, statusColor := statusLabel(fr.Status)
		fmt.Printf("  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			truncate(fr.Name, 42), color(statusColor), status, color(colorReset),
			fr.StepsTotal, fr.StepsPassed, fr.StepsFailed, fr.StepsSkipped,
			formatDuration(fr.Duration))
	}

	fmt.Println(strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", result.PassedFlows, result.TotalFlows)
	statusColor := color(colorGreen)
	if result.FailedFlows > 0 {
		statusColor = color(colorRed)
	}
	fmt.Printf("  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		totalSteps, passedSteps, failedSteps, skippedSteps,
		formatDuration(result.Duration))
	fmt.Println(strings.Repeat("═", tableWidth))
	fmt.Printf("  %sReport: %s%s\n", color(colorDim), result.ReportDir, color(colorReset))
}

// printReport prints a saved report flow by flow with all commands.
func printReport(outputDir string) error {
	index, err := report.ReadIndex(outputDir)
	if err != nil {
		return err
	}
	fmt.Printf("Run %s %s(%s)%s\n", index.RunID, color(colorGray), index.Status, color(colorReset))
	for i, entry := range index.Flows {
		fmt.Printf("\n  %s[%d/%d]%s %s%s%s (%s)\n",
			color(colorCyan), i+1, len(index.Flows), color(colorReset),
			color(colorBold), entry.Name, color(colorReset), entry.SourceFile)
		fmt.Println("  " + strings.Repeat("─", 60))

		detail, err := report.ReadFlowDetail(outputDir, entry)
		if err != nil {
			fmt.Printf("    (Could not load command details: %v)\n", err)
		} else {
			for _, cmd := range detail.Commands {
				printCommand(cmd, 0)
			}
		}

		var duration int64
		if entry.Duration != nil {
			duration = *entry.Duration
		}
		onFlowEnd(entry.Name, entry.Status, duration)
	}
	return nil
}

// printCommand prints a single command with proper indentation.
func printCommand(cmd report.Command, depth int) {
	description := cmd.Label
	if description == "" {
		description = cmd.YAML
	}
	if description == "" {
		description = cmd.Type
	}

	var duration int64
	if cmd.Duration != nil {
		duration = *cmd.Duration
	}
	errMsg := ""
	if cmd.Error != nil {
		errMsg = cmd.Error.Message
	}
	printStep(strings.Repeat("  ", 2+depth), description, cmd.Status, duration, errMsg)

	for _, sub := range cmd.SubCommands {
		printCommand(sub, depth+1)
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
