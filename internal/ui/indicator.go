package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Indicator styles.
const (
	StyleBar    = "bar"
	StyleCircle = "circle"
	StyleText   = "text"
)

// Indicator draws gate progress as a single line.
type Indicator interface {
	// View renders progress, a fraction between 0 and 1.
	View(progress float64) string
	// Style returns the indicator's style name.
	Style() string
}

// IndicatorOptions mirrors the indicator section of the config file.
type IndicatorOptions struct {
	Style       string
	Width       int
	Label       string
	Color       string
	TrackColor  string
	ShowPercent bool
}

// NewIndicator builds the indicator for opts.Style. Unknown styles fall back
// to the bar.
func NewIndicator(opts IndicatorOptions) Indicator {
	fill := colorOr(opts.Color, ColorSecondary)
	track := colorOr(opts.TrackColor, ColorMuted)

	switch opts.Style {
	case StyleCircle:
		return circleIndicator{opts: opts, fill: lipgloss.NewStyle().Foreground(fill)}
	case StyleText:
		return textIndicator{opts: opts, pct: lipgloss.NewStyle().Foreground(fill).Bold(true)}
	default:
		return newBarIndicator(opts, fill, track)
	}
}

func colorOr(c string, fallback lipgloss.Color) lipgloss.Color {
	if c == "" {
		return fallback
	}
	return lipgloss.Color(c)
}

// barIndicator renders through the bubbles progress component.
type barIndicator struct {
	label string
	bar   progress.Model
}

func newBarIndicator(opts IndicatorOptions, fill, track lipgloss.Color) barIndicator {
	width := opts.Width
	if width <= 0 {
		width = 40
	}
	bar := progress.New(
		progress.WithWidth(width),
		progress.WithSolidFill(string(fill)),
		progress.WithColorProfile(profile()),
	)
	bar.EmptyColor = string(track)
	bar.ShowPercentage = opts.ShowPercent
	if profile() == termenv.Ascii {
		bar.PercentageStyle = lipgloss.NewStyle()
	}
	return barIndicator{label: opts.Label, bar: bar}
}

func (b barIndicator) View(p float64) string {
	bar := b.bar.ViewAs(ClampFraction(p))
	if b.label == "" {
		return bar
	}
	return b.label + " " + bar
}

func (b barIndicator) Style() string { return StyleBar }

// circleIndicator fills a ring glyph in quarters.
type circleIndicator struct {
	opts IndicatorOptions
	fill lipgloss.Style
}

func (c circleIndicator) View(p float64) string {
	p = ClampFraction(p)
	idx := int(p * float64(len(CircleGlyphs)-1))
	parts := []string{c.fill.Render(CircleGlyphs[idx])}
	if c.opts.Label != "" {
		parts = append(parts, c.opts.Label)
	}
	if c.opts.ShowPercent {
		parts = append(parts, FormatPercent(p))
	}
	return strings.Join(parts, " ")
}

func (c circleIndicator) Style() string { return StyleCircle }

// textIndicator is a label with a percentage. The activity glyph in front
// of it is drawn by GateView.
type textIndicator struct {
	opts IndicatorOptions
	pct  lipgloss.Style
}

func (t textIndicator) View(p float64) string {
	label := t.opts.Label
	if label == "" {
		label = "Loading"
	}
	out := label + "..."
	if t.opts.ShowPercent {
		out += " " + t.pct.Render(strings.TrimSpace(FormatPercent(p)))
	}
	return out
}

func (t textIndicator) Style() string { return StyleText }
