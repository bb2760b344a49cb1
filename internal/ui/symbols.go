package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Ready
	SymbolFail     = "✗" // Cancelled or failed
	SymbolSkipped  = "⊘" // Timed out, continued without readiness
	SymbolComplete = "●" // Already loaded this session
)

// CircleGlyphs fill a ring in quarters, empty to full.
var CircleGlyphs = []string{"○", "◔", "◑", "◕", "●"}
