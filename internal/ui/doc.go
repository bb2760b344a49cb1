// Package ui renders loadgate's terminal output.
//
// # Indicators
//
// An Indicator draws gate progress as one line in one of three styles:
//
//	bar     - bubbles progress bar with an optional label and percentage
//	circle  - a ring glyph filled in quarters (○ ◔ ◑ ◕ ●)
//	text    - "Loading..." with a percentage, behind a spinner glyph
//
// GateView is the Bubble Tea model that hosts an indicator while a gate runs.
// The caller owns the gate and forwards values with ProgressMsg, then sends
// DoneMsg once the gate fires:
//
//	p := tea.NewProgram(ui.NewGateView(ind))
//	scalar.Subscribe(func(v float64) { p.Send(ui.ProgressMsg(v)) })
//
// When output is not a terminal, PlainProgress prints one static bar line per
// 10% step instead.
//
// # Colors
//
// Colors are ANSI codes so they follow the terminal's palette. Indicator
// fill and track colors come from config and may be hex or ANSI values.
// DisableColors switches to monochrome output (for --no-color).
package ui
