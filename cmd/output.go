package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/stevehiehn/recipe-executor/internal/executor"
)

const (
	glyphPassed  = "✓"
	glyphFailed  = "✗"
	glyphSkipped = "-"
)

var (
	colorGreen = lipgloss.Color("42")
	colorRed   = lipgloss.Color("196")
	colorCyan  = lipgloss.Color("51")
	colorDim   = lipgloss.Color("240")
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	passedStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	failedStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	skippedStyle = lipgloss.NewStyle().
			Faint(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorDim)
)

// renderSummary formats a run result for the terminal.
func renderSummary(path string, result *executor.Result) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Recipe: "+path) + "\n")
	if result == nil {
		return b.String()
	}

	for _, rec := range result.Steps {
		line := fmt.Sprintf("%2d. %s", rec.Index, rec.Type)
		if rec.Duration != "" {
			line += " " + dimStyle.Render("("+rec.Duration+")")
		}
		switch rec.Status {
		case executor.StatusCompleted:
			b.WriteString("  " + passedStyle.Render(glyphPassed) + " " + line + "\n")
		case executor.StatusFailed:
			b.WriteString("  " + failedStyle.Render(glyphFailed) + " " + line + "\n")
			if rec.Error != "" {
				b.WriteString("      " + failedStyle.Render(rec.Error) + "\n")
			}
		default:
			b.WriteString("  " + skippedStyle.Render(glyphSkipped+" "+line) + "\n")
		}
	}

	switch {
	case result.Succeeded():
		b.WriteString(passedStyle.Render(fmt.Sprintf("Completed %d step(s) in %s.", len(result.Steps), result.Duration)) + "\n")
	case result.FailedStep >= 0:
		b.WriteString(failedStyle.Render(fmt.Sprintf("Failed at step %d.", result.FailedStep)) + "\n")
	default:
		b.WriteString(failedStyle.Render("Failed before any step ran.") + "\n")
	}
	if result.Error != nil && result.Error.Hint != "" {
		b.WriteString("  Hint: " + result.Error.Hint + "\n")
	}
	b.WriteString(dimStyle.Render("Run ID: "+result.RunID) + "\n")
	return b.String()
}
