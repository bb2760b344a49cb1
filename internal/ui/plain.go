package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rileyhilliard/loadgate/internal/gate"
)

// PlainProgress writes one line per progress step for output that isn't a
// terminal (CI logs, pipes). Safe for concurrent use.
type PlainProgress struct {
	mu       sync.Mutex
	out      io.Writer
	label    string
	width    int
	step     float64
	lastStep int
	finished bool
}

// NewPlainProgress creates a writer that reports every 10%.
func NewPlainProgress(out io.Writer, label string, width int) *PlainProgress {
	if width <= 0 {
		width = 20
	}
	return &PlainProgress{out: out, label: label, width: width, step: 0.1, lastStep: -1}
}

// Update reports p when it has crossed into a new step.
func (p *PlainProgress) Update(fraction float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	step := int(ClampFraction(fraction)/p.step + 1e-9)
	if step <= p.lastStep {
		return
	}
	p.lastStep = step
	fmt.Fprintf(p.out, "%s %s\n", p.label, RenderBar(fraction, BarConfig{
		Width:       p.width,
		Brackets:    true,
		ShowPercent: true,
	}))
}

// Finish writes the result line. Later calls do nothing.
func (p *PlainProgress) Finish(outcome gate.Outcome, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finished {
		return
	}
	p.finished = true
	fmt.Fprintln(p.out, RenderResult(outcome, elapsed))
}
