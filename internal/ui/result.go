package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/loadgate/internal/gate"
)

// RenderResult renders the final line of a gate run.
func RenderResult(outcome gate.Outcome, elapsed time.Duration) string {
	var symbol, text string
	var color lipgloss.Color

	switch outcome {
	case gate.OutcomeReady:
		symbol, color, text = SymbolSuccess, ColorSuccess, "Ready"
	case gate.OutcomeTimedOut:
		symbol, color, text = SymbolSkipped, ColorWarning, "Timed out waiting for readiness, continuing"
	case gate.OutcomeSession:
		symbol, color, text = SymbolComplete, ColorInfo, "Already loaded this session"
	default:
		symbol, color, text = SymbolFail, ColorError, "Cancelled"
	}

	timing := lipgloss.NewStyle().Foreground(ColorMuted).Render(FormatDuration(elapsed))
	return fmt.Sprintf("%s %s %s", lipgloss.NewStyle().Foreground(color).Render(symbol), text, timing)
}

// FormatDuration formats a duration for display (e.g., "0.05s", "1.2s").
func FormatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 0.1 {
		return fmt.Sprintf("%.2fs", secs)
	}
	return fmt.Sprintf("%.1fs", secs)
}
