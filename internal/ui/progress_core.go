package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Progress bar block characters.
const (
	BarFilled = '█'
	BarEmpty  = '░'
)

// BarConfig configures static progress bar rendering.
type BarConfig struct {
	Width       int                    // Width of the bar in characters
	Brackets    bool                   // Whether to wrap bar in [ ]
	Color       lipgloss.TerminalColor // Filled part; nil renders unstyled
	TrackColor  lipgloss.TerminalColor // Empty part; nil renders unstyled
	ShowPercent bool                   // Whether to append percentage
}

// ClampFraction clamps a progress fraction to the 0-1 range.
func ClampFraction(f float64) float64 {
	if f < 0 || f != f {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// CalculateBarCounts returns the number of filled and empty characters for a
// fraction (0-1) of width.
func CalculateBarCounts(fraction float64, width int) (filled, empty int) {
	filled = int(ClampFraction(fraction) * float64(width))
	if filled > width {
		filled = width
	}
	empty = width - filled
	return
}

// FormatPercent renders a fraction as a right-aligned percentage ("  7%").
func FormatPercent(fraction float64) string {
	return fmt.Sprintf("%3.0f%%", ClampFraction(fraction)*100)
}

// RenderBar renders a static bar without animation. Used where a Bubble Tea
// program can't run, such as piped output.
func RenderBar(fraction float64, config BarConfig) string {
	if config.Width <= 0 {
		return ""
	}

	filled, empty := CalculateBarCounts(fraction, config.Width)
	filledBar := strings.Repeat(string(BarFilled), filled)
	emptyBar := strings.Repeat(string(BarEmpty), empty)

	if config.Color != nil {
		filledBar = lipgloss.NewStyle().Foreground(config.Color).Render(filledBar)
	}
	if config.TrackColor != nil {
		emptyBar = lipgloss.NewStyle().Foreground(config.TrackColor).Render(emptyBar)
	}

	bar := filledBar + emptyBar
	if config.Brackets {
		bar = "[" + bar + "]"
	}
	if config.ShowPercent {
		bar += " " + FormatPercent(fraction)
	}
	return bar
}
