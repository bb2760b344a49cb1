package gate

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rileyhilliard/loadgate/internal/clock"
	"github.com/rileyhilliard/loadgate/internal/logger"
)

const (
	// DefaultPollInterval is how often the hold timer refreshes progress.
	DefaultPollInterval = 100 * time.Millisecond

	// MaxPollInterval bounds the hold timer's refresh interval.
	MaxPollInterval = 250 * time.Millisecond

	// DefaultSettleBudget bounds the wait for the scalar to catch up to 1.
	DefaultSettleBudget = 1200 * time.Millisecond

	// DefaultSettleThreshold is the scalar value treated as "visually full".
	DefaultSettleThreshold = 0.995
)

// Gate drives a single run from activation to completion.
// Create one Gate per run; Activate may be called only once.
type Gate struct {
	clock           clock.Clock
	scalar          Scalar
	store           SessionStore
	sessionKey      string
	log             logger.Logger
	pollInterval    time.Duration
	settleBudget    time.Duration
	settleThreshold float64

	// pushMu orders writes to the scalar so a stale target never lands
	// after a newer one.
	pushMu sync.Mutex

	mu         sync.Mutex
	runID      string
	cfg        Config
	onComplete func()
	phase      Phase
	outcome    Outcome

	startedAt         time.Time
	timerProgress     float64
	timerComplete     bool
	readinessProgress float64
	readinessComplete bool
	timedOut          bool
	settled           bool
	hasFired          bool
	cancelled         bool
	visual            float64

	poll        clock.Timer
	hold        clock.Timer
	timeout     clock.Timer
	settleTimer clock.Timer
	finish      clock.Timer
	watchSub    Disposable
	scalarSub   Disposable

	done     chan struct{}
	doneOnce sync.Once
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the clock used for every timer. Defaults to clock.Real().
func WithClock(c clock.Clock) Option {
	return func(g *Gate) { g.clock = c }
}

// WithScalar sets the smoothed value that receives visual progress.
// Without one, progress is only tracked and finalize does not wait to settle.
func WithScalar(s Scalar) Option {
	return func(g *Gate) { g.scalar = s }
}

// WithSessionStore sets where the once-per-session flag lives.
// Without a store, RunOncePerSession never short-circuits.
func WithSessionStore(s SessionStore) Option {
	return func(g *Gate) { g.store = s }
}

// WithSessionKey overrides DefaultSessionKey.
func WithSessionKey(key string) Option {
	return func(g *Gate) {
		if key != "" {
			g.sessionKey = key
		}
	}
}

// WithLogger sets the logger for phase transitions and warnings.
func WithLogger(l logger.Logger) Option {
	return func(g *Gate) { g.log = l }
}

// WithPollInterval sets the hold timer's refresh interval.
// Values above MaxPollInterval are capped; non-positive values keep the default.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gate) {
		if d <= 0 {
			return
		}
		if d > MaxPollInterval {
			d = MaxPollInterval
		}
		g.pollInterval = d
	}
}

// WithSettleBudget bounds how long finalize waits for the scalar to settle.
func WithSettleBudget(d time.Duration) Option {
	return func(g *Gate) {
		if d >= 0 {
			g.settleBudget = d
		}
	}
}

// WithSettleThreshold sets the scalar value treated as settled.
func WithSettleThreshold(v float64) Option {
	return func(g *Gate) {
		if v > 0 && v <= 1 {
			g.settleThreshold = v
		}
	}
}

// New creates an idle Gate.
func New(opts ...Option) *Gate {
	g := &Gate{
		clock:           clock.Real(),
		sessionKey:      DefaultSessionKey,
		log:             logger.Noop(),
		pollInterval:    DefaultPollInterval,
		settleBudget:    DefaultSettleBudget,
		settleThreshold: DefaultSettleThreshold,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Activate starts the run. onComplete is invoked at most once, never
// synchronously from Activate, and never after the returned Disposable has
// been disposed. A nil watcher never reports ready.
func (g *Gate) Activate(cfg Config, w Watcher, onComplete func()) Disposable {
	cfg = cfg.normalized()
	if onComplete == nil {
		onComplete = func() {}
	}

	// Read the session flag before taking the lock; stores may do I/O.
	sessionDone := cfg.RunOncePerSession && g.sessionCompleted()

	g.mu.Lock()
	if g.phase != PhaseIdle {
		runID := g.runID
		g.mu.Unlock()
		g.log.Warn("[%s] gate activated twice; ignoring second activation", runID)
		return DisposeFunc(nil)
	}
	g.runID = uuid.NewString()[:8]
	g.cfg = cfg
	g.onComplete = onComplete
	g.startedAt = g.clock.Now()
	g.phase = PhaseHolding

	if sessionDone {
		g.readinessComplete = true
		g.readinessProgress = 1
		g.outcome = OutcomeSession
	}

	if cfg.MinimumHold == 0 {
		g.timerComplete = true
		g.timerProgress = 1
	} else {
		g.poll = clock.Every(g.clock, g.pollInterval, g.onTick)
		g.hold = g.clock.AfterFunc(cfg.MinimumHold, g.onTick)
	}

	if !sessionDone && cfg.Timeout > 0 {
		g.timeout = g.clock.AfterFunc(cfg.Timeout, g.onTimeout)
	}
	runID := g.runID
	g.mu.Unlock()

	g.log.Debug("[%s] activated hold=%s timeout=%s finish=%s session-skip=%t",
		runID, cfg.MinimumHold, cfg.Timeout, cfg.FinishDelay, sessionDone)
	if !sessionDone && cfg.Timeout == 0 {
		g.log.Debug("[%s] no timeout set; the gate waits until the watcher reports ready", runID)
	}

	if !sessionDone && w != nil {
		sub := w.Subscribe(g.onReadiness)
		g.mu.Lock()
		if g.phase.Terminal() || g.phase == PhaseFinalizing || g.readinessComplete {
			g.mu.Unlock()
			if sub != nil {
				sub.Dispose()
			}
		} else {
			g.watchSub = sub
			g.mu.Unlock()
		}
	}

	g.pushProgress()
	g.evaluate()

	return DisposeFunc(g.Dispose)
}

// Dispose cancels all pending work without invoking the completion callback.
// It is idempotent, safe from any callback, and a no-op once the gate has
// fired.
func (g *Gate) Dispose() {
	g.mu.Lock()
	if g.cancelled || g.hasFired {
		g.mu.Unlock()
		return
	}
	g.cancelled = true
	prev := g.phase
	g.phase = PhaseCancelled
	g.onComplete = nil
	timers, subs := g.releaseLocked()
	runID := g.runID
	g.mu.Unlock()

	stopAll(timers, subs)
	g.log.Debug("[%s] %s -> %s", runID, prev, PhaseCancelled)
	g.closeDone()
}

// Done is closed once the run is over: after the completion callback and the
// session flag write, or after Dispose cancelled the run.
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

func (g *Gate) closeDone() {
	g.doneOnce.Do(func() { close(g.done) })
}

// Phase returns the current phase.
func (g *Gate) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Outcome returns which arm finalized the gate, or OutcomeNone.
func (g *Gate) Outcome() Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.outcome
}

// Progress returns the last visual progress target pushed to the scalar.
func (g *Gate) Progress() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.visual
}

// Fired reports whether the completion callback has been invoked.
func (g *Gate) Fired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.hasFired
}

// Elapsed returns the time since activation.
func (g *Gate) Elapsed() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.startedAt.IsZero() {
		return 0
	}
	return g.clock.Now().Sub(g.startedAt)
}

// RunID returns the short identifier used in log lines.
func (g *Gate) RunID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.runID
}

// racingLocked reports whether the gate still accepts arm updates.
// Must be called with mu held.
func (g *Gate) racingLocked() bool {
	return g.phase == PhaseHolding || g.phase == PhaseAwaitingReadiness
}

// onTick is the timer arm: it refreshes hold progress and completes the hold.
func (g *Gate) onTick() {
	g.mu.Lock()
	if !g.racingLocked() || g.timerComplete {
		g.mu.Unlock()
		return
	}
	elapsed := g.clock.Now().Sub(g.startedAt)
	progress := clamp01(float64(elapsed) / float64(g.cfg.MinimumHold))
	if progress > g.timerProgress {
		g.timerProgress = progress
	}
	var stop []clock.Timer
	if elapsed >= g.cfg.MinimumHold {
		g.timerComplete = true
		g.timerProgress = 1
		stop = append(stop, g.poll, g.hold)
		g.poll, g.hold = nil, nil
	}
	g.mu.Unlock()

	stopAll(stop, nil)
	g.pushProgress()
	g.evaluate()
}

// onReadiness is the readiness arm.
func (g *Gate) onReadiness(done bool) {
	if !done {
		return
	}
	g.mu.Lock()
	if !g.racingLocked() || g.readinessComplete {
		g.mu.Unlock()
		return
	}
	g.readinessComplete = true
	g.readinessProgress = 1
	if !g.timedOut {
		g.outcome = OutcomeReady
	}
	stop := []clock.Timer{g.timeout}
	g.timeout = nil
	sub := g.watchSub
	g.watchSub = nil
	runID := g.runID
	elapsed := g.clock.Now().Sub(g.startedAt)
	g.mu.Unlock()

	g.log.Debug("[%s] readiness reported after %s", runID, elapsed)
	stopAll(stop, []Disposable{sub})
	g.pushProgress()
	g.evaluate()
}

// onTimeout is the timeout arm. A timeout is latched: once fired it stays
// the race outcome even if readiness arrives before the hold ends.
func (g *Gate) onTimeout() {
	g.mu.Lock()
	if !g.racingLocked() || g.readinessComplete || g.timedOut {
		g.mu.Unlock()
		return
	}
	g.timedOut = true
	g.outcome = OutcomeTimedOut
	g.timeout = nil
	runID := g.runID
	after := g.cfg.Timeout
	g.mu.Unlock()

	g.log.Warn("[%s] readiness not reported within %s; continuing without it", runID, after)
	g.evaluate()
}

// evaluate applies the merge policy and starts finalize when it is satisfied.
func (g *Gate) evaluate() {
	g.mu.Lock()
	if !g.racingLocked() || !g.timerComplete {
		g.mu.Unlock()
		return
	}
	if !g.readinessComplete && !g.timedOut {
		prev := g.phase
		g.phase = PhaseAwaitingReadiness
		runID := g.runID
		g.mu.Unlock()
		if prev != PhaseAwaitingReadiness {
			g.log.Debug("[%s] %s -> %s", runID, prev, PhaseAwaitingReadiness)
		}
		return
	}

	prev := g.phase
	g.phase = PhaseFinalizing
	g.visual = 1
	timers, subs := g.releaseLocked()
	runID := g.runID
	g.mu.Unlock()

	stopAll(timers, subs)
	g.log.Debug("[%s] %s -> %s", runID, prev, PhaseFinalizing)

	if g.scalar != nil {
		g.pushMu.Lock()
		g.scalar.Set(1)
		g.pushMu.Unlock()
	}

	g.awaitSettle()
}

// awaitSettle waits for the scalar to reach the threshold or for the settle
// budget to run out, whichever comes first.
func (g *Gate) awaitSettle() {
	if g.scalar == nil || g.scalar.Get() >= g.settleThreshold {
		g.onSettled("value")
		return
	}

	g.mu.Lock()
	if g.phase != PhaseFinalizing || g.settled {
		g.mu.Unlock()
		return
	}
	g.settleTimer = g.clock.AfterFunc(g.settleBudget, func() { g.onSettled("budget") })
	g.mu.Unlock()

	sub := g.scalar.Subscribe(func(v float64) {
		if v >= g.settleThreshold {
			g.onSettled("value")
		}
	})

	g.mu.Lock()
	if g.phase != PhaseFinalizing || g.settled {
		g.mu.Unlock()
		sub.Dispose()
		return
	}
	g.scalarSub = sub
	g.mu.Unlock()

	// The scalar may have crossed the threshold before the subscription.
	if g.scalar.Get() >= g.settleThreshold {
		g.onSettled("value")
	}
}

// onSettled schedules the completion callback after the finish delay.
// The callback always goes through the clock so it never runs inside
// Activate.
func (g *Gate) onSettled(reason string) {
	g.mu.Lock()
	if g.phase != PhaseFinalizing || g.settled {
		g.mu.Unlock()
		return
	}
	g.settled = true
	stop := []clock.Timer{g.settleTimer}
	g.settleTimer = nil
	sub := g.scalarSub
	g.scalarSub = nil
	g.finish = g.clock.AfterFunc(g.cfg.FinishDelay, g.fire)
	runID := g.runID
	g.mu.Unlock()

	stopAll(stop, []Disposable{sub})
	g.log.Debug("[%s] progress settled (%s)", runID, reason)
}

// fire invokes the completion callback exactly once.
func (g *Gate) fire() {
	g.mu.Lock()
	if g.phase != PhaseFinalizing || g.cancelled || g.hasFired {
		g.mu.Unlock()
		return
	}
	g.hasFired = true
	g.phase = PhaseDone
	g.finish = nil
	cb := g.onComplete
	g.onComplete = nil
	persist := g.cfg.RunOncePerSession
	outcome := g.outcome
	elapsed := g.clock.Now().Sub(g.startedAt)
	runID := g.runID
	g.mu.Unlock()

	g.log.Debug("[%s] %s -> %s outcome=%s after %s", runID, PhaseFinalizing, PhaseDone, outcome, elapsed)
	cb()

	if persist {
		g.markSessionCompleted()
	}
	g.closeDone()
}

// pushProgress recomputes visual progress and pushes it to the scalar when it
// moved forward.
func (g *Gate) pushProgress() {
	g.pushMu.Lock()
	defer g.pushMu.Unlock()

	g.mu.Lock()
	if !g.racingLocked() {
		g.mu.Unlock()
		return
	}
	v := Blend(g.timerProgress, g.timerComplete, g.readinessProgress, g.cfg.MinimumHold > 0)
	if v <= g.visual {
		g.mu.Unlock()
		return
	}
	g.visual = v
	g.mu.Unlock()

	if g.scalar != nil {
		g.scalar.Set(v)
	}
}

// releaseLocked detaches every timer and subscription. Must be called with
// mu held; the caller stops them after unlocking.
func (g *Gate) releaseLocked() ([]clock.Timer, []Disposable) {
	timers := []clock.Timer{g.poll, g.hold, g.timeout, g.settleTimer, g.finish}
	subs := []Disposable{g.watchSub, g.scalarSub}
	g.poll, g.hold, g.timeout, g.settleTimer, g.finish = nil, nil, nil, nil, nil
	g.watchSub, g.scalarSub = nil, nil
	return timers, subs
}

func stopAll(timers []clock.Timer, subs []Disposable) {
	for _, t := range timers {
		if t != nil {
			t.Stop()
		}
	}
	for _, s := range subs {
		if s != nil {
			s.Dispose()
		}
	}
}

func (g *Gate) sessionCompleted() bool {
	if g.store == nil {
		return false
	}
	v, ok, err := g.store.Get(g.sessionKey)
	if err != nil {
		g.log.Warn("reading session flag %q: %v", g.sessionKey, err)
		return false
	}
	return ok && v != ""
}

func (g *Gate) markSessionCompleted() {
	if g.store == nil {
		return
	}
	if err := g.store.Set(g.sessionKey, g.clock.Now().UTC().Format(time.RFC3339)); err != nil {
		g.log.Warn("writing session flag %q: %v", g.sessionKey, err)
	}
}
