package commands

import (
	"fmt"
	"strings"

	"github.com/wonny/trustrank/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// printRunResult prints a batch run summary
func printRunResult(r *contracts.RunResult) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  Run %s  [%s]\n", r.RunID, r.Status)
	PrintSeparator()
	if r.Reason != "" {
		PrintKeyValue("Reason", r.Reason, 10)
	}
	PrintKeyValue("Processed", fmt.Sprintf("%d", r.Processed), 10)
	PrintKeyValue("Updated", fmt.Sprintf("%d", r.Updated), 10)
	PrintKeyValue("Errors", fmt.Sprintf("%d", r.Errors), 10)
	PrintKeyValue("Pages", fmt.Sprintf("%d", r.Pages), 10)
	PrintKeyValue("Duration", r.Duration().String(), 10)
	if r.NextCursor != "" {
		PrintKeyValue("Next", r.NextCursor, 10)
	}
	PrintSeparator()

	for _, msg := range r.ErrorSummary {
		PrintWarning(msg)
	}

	switch r.Status {
	case contracts.RunCompleted:
		PrintSuccess("Run completed")
	case contracts.RunSkipped:
		PrintWarning("Run skipped")
	case contracts.RunPartial:
		PrintWarning("Run finished with majority errors")
	default:
		PrintError("Run failed: " + r.Error)
	}
}
