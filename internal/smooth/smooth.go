// Package smooth provides the smoothed scalars that carry visual progress
// from a gate to the renderer.
package smooth

import (
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/harmonica"

	"github.com/rileyhilliard/loadgate/internal/clock"
	"github.com/rileyhilliard/loadgate/internal/gate"
)

// Spring defaults, matching a quick, barely-overshooting bar fill.
const (
	DefaultFPS       = 60
	DefaultFrequency = 8.0
	DefaultDamping   = 1.0

	// restEpsilon is how close to the target position and zero velocity the
	// spring must get before it snaps and stops stepping.
	restEpsilon = 0.001
)

// listeners is a set of change callbacks shared by both scalars.
type listeners struct {
	mu   sync.Mutex
	subs map[int]func(float64)
	next int
}

func (l *listeners) add(fn func(float64)) gate.Disposable {
	l.mu.Lock()
	if l.subs == nil {
		l.subs = make(map[int]func(float64))
	}
	id := l.next
	l.next++
	l.subs[id] = fn
	l.mu.Unlock()

	return gate.DisposeFunc(func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	})
}

// notify calls every listener without holding the lock, so listeners may
// unsubscribe from inside the callback.
func (l *listeners) notify(v float64) {
	l.mu.Lock()
	fns := make([]func(float64), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Instant jumps straight to every target. Used for --no-animate and tests.
type Instant struct {
	mu    sync.Mutex
	value float64
	subs  listeners
}

// NewInstant creates an Instant scalar at 0.
func NewInstant() *Instant {
	return &Instant{}
}

// Set moves the value to target and notifies listeners.
func (s *Instant) Set(target float64) {
	s.mu.Lock()
	s.value = target
	s.mu.Unlock()
	s.subs.notify(target)
}

// Get returns the current value.
func (s *Instant) Get() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Subscribe registers a change listener.
func (s *Instant) Subscribe(onChange func(float64)) gate.Disposable {
	return s.subs.add(onChange)
}

// Spring eases toward its target with damped spring physics, stepping once
// per frame on the supplied clock while it is in motion.
type Spring struct {
	clock  clock.Clock
	frame  time.Duration
	spring harmonica.Spring

	mu     sync.Mutex
	pos    float64
	vel    float64
	target float64
	ticker clock.Timer
	closed bool
	subs   listeners
}

// SpringOption configures a Spring.
type SpringOption func(*springConfig)

type springConfig struct {
	fps       int
	frequency float64
	damping   float64
}

// WithFPS sets the animation frame rate.
func WithFPS(fps int) SpringOption {
	return func(c *springConfig) {
		if fps > 0 {
			c.fps = fps
		}
	}
}

// WithFrequency sets the spring's angular frequency. Higher is snappier.
func WithFrequency(f float64) SpringOption {
	return func(c *springConfig) {
		if f > 0 {
			c.frequency = f
		}
	}
}

// WithDamping sets the damping ratio. 1 is critically damped; below 1 overshoots.
func WithDamping(d float64) SpringOption {
	return func(c *springConfig) {
		if d > 0 {
			c.damping = d
		}
	}
}

// NewSpring creates a Spring at rest at 0.
func NewSpring(c clock.Clock, opts ...SpringOption) *Spring {
	cfg := springConfig{fps: DefaultFPS, frequency: DefaultFrequency, damping: DefaultDamping}
	for _, opt := range opts {
		opt(&cfg)
	}
	if c == nil {
		c = clock.Real()
	}
	return &Spring{
		clock:  c,
		frame:  time.Second / time.Duration(cfg.fps),
		spring: harmonica.NewSpring(harmonica.FPS(cfg.fps), cfg.frequency, cfg.damping),
	}
}

// Set changes the target and starts stepping if the spring was at rest.
func (s *Spring) Set(target float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.target = target
	if s.ticker == nil && !s.atRestLocked() {
		s.ticker = clock.Every(s.clock, s.frame, s.step)
	}
}

// Get returns the current animated position.
func (s *Spring) Get() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Target returns the value the spring is moving toward.
func (s *Spring) Target() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.target
}

// Subscribe registers a listener called after every animation frame.
func (s *Spring) Subscribe(onChange func(float64)) gate.Disposable {
	return s.subs.add(onChange)
}

// Close stops the animation. Set is ignored afterwards.
func (s *Spring) Close() {
	s.mu.Lock()
	s.closed = true
	t := s.ticker
	s.ticker = nil
	s.mu.Unlock()
	if t != nil {
		t.Stop()
	}
}

func (s *Spring) step() {
	s.mu.Lock()
	if s.ticker == nil {
		s.mu.Unlock()
		return
	}
	s.pos, s.vel = s.spring.Update(s.pos, s.vel, s.target)
	var stop clock.Timer
	if s.atRestLocked() {
		s.pos, s.vel = s.target, 0
		stop = s.ticker
		s.ticker = nil
	}
	pos := s.pos
	s.mu.Unlock()

	if stop != nil {
		stop.Stop()
	}
	s.subs.notify(pos)
}

func (s *Spring) atRestLocked() bool {
	return math.Abs(s.pos-s.target) < restEpsilon && math.Abs(s.vel) < restEpsilon
}
