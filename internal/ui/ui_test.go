package ui

import (
	"bytes"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/loadgate/internal/gate"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

func TestColorsDisabledInTests(t *testing.T) {
	assert.False(t, ColorsEnabled())
	assert.Len(t, GradientColors, 4)
}

func TestClampFraction(t *testing.T) {
	tests := []struct {
		name  string
		input float64
		want  float64
	}{
		{"zero", 0, 0},
		{"half", 0.5, 0.5},
		{"one", 1, 1},
		{"negative", -0.2, 0},
		{"over one", 1.7, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampFraction(tt.input))
		})
	}
}

func TestCalculateBarCounts(t *testing.T) {
	tests := []struct {
		name       string
		fraction   float64
		width      int
		wantFilled int
		wantEmpty  int
	}{
		{"empty", 0, 10, 0, 10},
		{"half", 0.5, 10, 5, 5},
		{"full", 1, 10, 10, 0},
		{"rounds down", 0.33, 10, 3, 7},
		{"clamped", 2, 10, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filled, empty := CalculateBarCounts(tt.fraction, tt.width)
			assert.Equal(t, tt.wantFilled, filled, "filled count")
			assert.Equal(t, tt.wantEmpty, empty, "empty count")
		})
	}
}

func TestRenderBar(t *testing.T) {
	assert.Equal(t, "[█████░░░░░]  50%", RenderBar(0.5, BarConfig{Width: 10, Brackets: true, ShowPercent: true}))
	assert.Equal(t, "██░░", RenderBar(0.5, BarConfig{Width: 4}))
	assert.Empty(t, RenderBar(0.5, BarConfig{}))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "  0%", FormatPercent(0))
	assert.Equal(t, " 42%", FormatPercent(0.42))
	assert.Equal(t, "100%", FormatPercent(3))
}

func TestBarIndicator(t *testing.T) {
	ind := NewIndicator(IndicatorOptions{Style: StyleBar, Width: 20, Label: "Loading", ShowPercent: true})
	assert.Equal(t, StyleBar, ind.Style())

	view := ind.View(0.5)
	assert.True(t, strings.HasPrefix(view, "Loading "), "label comes first: %q", view)
	assert.Contains(t, view, "50%")
	assert.Contains(t, view, "█")

	assert.NotContains(t, ind.View(0), "█")
	assert.Contains(t, ind.View(1), "100%")
}

func TestBarIndicatorWithoutPercent(t *testing.T) {
	ind := NewIndicator(IndicatorOptions{Width: 20})
	assert.Equal(t, StyleBar, ind.Style(), "empty style falls back to bar")
	assert.NotContains(t, ind.View(0.5), "%")
}

func TestCircleIndicator(t *testing.T) {
	ind := NewIndicator(IndicatorOptions{Style: StyleCircle, Label: "Warming up"})
	assert.Equal(t, StyleCircle, ind.Style())

	tests := []struct {
		progress float64
		glyph    string
	}{
		{0, "○"},
		{0.3, "◔"},
		{0.5, "◑"},
		{0.8, "◕"},
		{1, "●"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.glyph+" Warming up", ind.View(tt.progress), "progress %v", tt.progress)
	}
}

func TestTextIndicator(t *testing.T) {
	ind := NewIndicator(IndicatorOptions{Style: StyleText, ShowPercent: true})
	assert.Equal(t, StyleText, ind.Style())
	assert.Equal(t, "Loading... 25%", ind.View(0.25))

	named := NewIndicator(IndicatorOptions{Style: StyleText, Label: "Booting"})
	assert.Equal(t, "Booting...", named.View(0.9))
}

func TestRenderResult(t *testing.T) {
	tests := []struct {
		outcome gate.Outcome
		want    string
	}{
		{gate.OutcomeReady, SymbolSuccess + " Ready"},
		{gate.OutcomeTimedOut, SymbolSkipped + " Timed out"},
		{gate.OutcomeSession, SymbolComplete + " Already loaded this session"},
		{gate.OutcomeNone, SymbolFail + " Cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.outcome.String(), func(t *testing.T) {
			out := RenderResult(tt.outcome, 1200*time.Millisecond)
			assert.True(t, strings.HasPrefix(out, tt.want), "got %q", out)
			assert.True(t, strings.HasSuffix(out, "1.2s"), "got %q", out)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0.05s", FormatDuration(50*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "30.0s", FormatDuration(30*time.Second))
}

func TestGateViewProgress(t *testing.T) {
	var m tea.Model = NewGateView(NewIndicator(IndicatorOptions{Style: StyleCircle}))

	m, cmd := m.Update(ProgressMsg(0.5))
	assert.Nil(t, cmd)
	assert.Equal(t, 0.5, m.(GateView).Progress())
	assert.Equal(t, "◑", m.View())

	m, _ = m.Update(ProgressMsg(0.3))
	assert.Equal(t, 0.5, m.(GateView).Progress(), "progress never moves backwards")
}

func TestGateViewDone(t *testing.T) {
	var m tea.Model = NewGateView(NewIndicator(IndicatorOptions{Style: StyleCircle}))

	m, cmd := m.Update(DoneMsg{Outcome: gate.OutcomeReady, Elapsed: time.Second})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	view := m.(GateView)
	assert.True(t, view.Done())
	assert.False(t, view.Interrupted())
	assert.Equal(t, 1.0, view.Progress())
	assert.Contains(t, view.View(), "●\n"+SymbolSuccess+" Ready")
}

func TestGateViewInterrupt(t *testing.T) {
	keys := []tea.KeyMsg{
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
	}

	for _, key := range keys {
		t.Run(key.String(), func(t *testing.T) {
			var m tea.Model = NewGateView(NewIndicator(IndicatorOptions{Style: StyleBar, Width: 20}))
			m, cmd := m.Update(key)
			require.NotNil(t, cmd)
			assert.True(t, m.(GateView).Interrupted())
			assert.Contains(t, m.View(), SymbolFail+" Cancelled")
		})
	}
}

func TestGateViewIgnoresOtherKeys(t *testing.T) {
	var m tea.Model = NewGateView(NewIndicator(IndicatorOptions{Style: StyleBar, Width: 20}))
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	assert.Nil(t, cmd)
	assert.False(t, m.(GateView).Interrupted())
}

func TestGateViewSpinnerOnlyForText(t *testing.T) {
	text := NewGateView(NewIndicator(IndicatorOptions{Style: StyleText}))
	assert.NotNil(t, text.Init())
	assert.True(t, strings.HasSuffix(text.View(), "Loading..."))
	assert.Contains(t, SpinnerFrames.Frames, strings.Fields(text.View())[0])

	bar := NewGateView(NewIndicator(IndicatorOptions{Style: StyleBar, Width: 20}))
	assert.Nil(t, bar.Init())
}

func TestPlainProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainProgress(&buf, "Loading", 10)

	p.Update(0)
	p.Update(0.05)
	p.Update(0.12)
	p.Update(0.15)
	p.Update(0.5)
	p.Update(0.4)
	p.Finish(gate.OutcomeReady, time.Second)
	p.Update(1)
	p.Finish(gate.OutcomeReady, time.Second)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Loading [░░░░░░░░░░]   0%", lines[0])
	assert.Equal(t, "Loading [█░░░░░░░░░]  12%", lines[1])
	assert.Equal(t, "Loading [█████░░░░░]  50%", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], SymbolSuccess+" Ready"))
}

func TestPlainProgressConcurrent(t *testing.T) {
	var buf bytes.Buffer
	p := NewPlainProgress(&buf, "Loading", 0)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Update(float64(i) / 10)
		}()
	}
	wg.Wait()
	p.Finish(gate.OutcomeTimedOut, 0)

	assert.Contains(t, buf.String(), SymbolSkipped)
}

func TestGateViewPollsSource(t *testing.T) {
	view := NewGateView(NewIndicator(IndicatorOptions{Style: StyleCircle})).
		WithSource(func() float64 { return 0.42 }, 1000)

	cmd := view.Init()
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, ProgressMsg(0.42), msg)

	m, next := view.Update(msg)
	assert.NotNil(t, next, "keeps polling while running")
	assert.Equal(t, 0.42, m.(GateView).Progress())

	m, _ = m.Update(DoneMsg{Outcome: gate.OutcomeReady})
	_, next = m.Update(ProgressMsg(0.5))
	assert.Nil(t, next, "stops polling once done")
}
