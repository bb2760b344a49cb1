package ui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rileyhilliard/loadgate/internal/gate"
)

// SpinnerFrames animate the text style's activity glyph.
var SpinnerFrames = spinner.Spinner{
	Frames: []string{"◐", "◓", "◑", "◒"},
	FPS:    time.Second / 10,
}

// ProgressMsg carries a new smoothed progress value into GateView.
type ProgressMsg float64

// DoneMsg tells GateView that the gate fired.
type DoneMsg struct {
	Outcome gate.Outcome
	Elapsed time.Duration
}

// GateView is the Bubble Tea model `loadgate wait` runs while the gate is
// active. It only renders; the gate and its scalar live outside the program.
// Progress arrives as ProgressMsg, either sent by the caller or polled from a
// source each frame. The caller sends DoneMsg once the gate fires.
type GateView struct {
	indicator   Indicator
	spinner     spinner.Model
	source      func() float64
	frame       time.Duration
	progress    float64
	done        *DoneMsg
	interrupted bool
}

// NewGateView creates a view around ind.
func NewGateView(ind Indicator) GateView {
	sp := spinner.New()
	sp.Spinner = SpinnerFrames
	sp.Style = lipgloss.NewStyle().Foreground(GradientColors[1])
	return GateView{indicator: ind, spinner: sp}
}

// WithSource makes the view read progress from src fps times a second.
func (m GateView) WithSource(src func() float64, fps int) GateView {
	if fps <= 0 {
		fps = 60
	}
	m.source = src
	m.frame = time.Second / time.Duration(fps)
	return m
}

func (m GateView) poll() tea.Cmd {
	if m.source == nil || m.done != nil || m.interrupted {
		return nil
	}
	src := m.source
	return tea.Tick(m.frame, func(time.Time) tea.Msg {
		return ProgressMsg(src())
	})
}

func (m GateView) spins() bool {
	return m.indicator.Style() == StyleText
}

// Init starts polling and, for the text style, the spinner.
func (m GateView) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.spins() {
		cmds = append(cmds, m.spinner.Tick)
	}
	if cmd := m.poll(); cmd != nil {
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// Update handles progress, completion, key and spinner messages.
func (m GateView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ProgressMsg:
		if p := float64(msg); p > m.progress {
			m.progress = ClampFraction(p)
		}
		return m, m.poll()
	case DoneMsg:
		m.progress = 1
		m.done = &msg
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.interrupted = true
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		if !m.spins() || m.done != nil {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the indicator, then the result line once done.
func (m GateView) View() string {
	switch {
	case m.done != nil:
		return m.indicator.View(1) + "\n" + RenderResult(m.done.Outcome, m.done.Elapsed) + "\n"
	case m.interrupted:
		return m.indicator.View(m.progress) + "\n" + RenderResult(gate.OutcomeNone, 0) + "\n"
	case m.spins():
		return m.spinner.View() + " " + m.indicator.View(m.progress)
	default:
		return m.indicator.View(m.progress)
	}
}

// Interrupted reports whether the user quit before the gate fired.
func (m GateView) Interrupted() bool {
	return m.interrupted
}

// Done reports whether the gate fired.
func (m GateView) Done() bool {
	return m.done != nil
}

// Progress returns the progress last rendered.
func (m GateView) Progress() float64 {
	return m.progress
}
