package gate_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	clocktesting "github.com/rileyhilliard/loadgate/internal/clock/testing"
	"github.com/rileyhilliard/loadgate/internal/gate"
	"github.com/rileyhilliard/loadgate/internal/logger"
	"github.com/rileyhilliard/loadgate/internal/session"
	"github.com/rileyhilliard/loadgate/internal/smooth"
	"github.com/rileyhilliard/loadgate/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run wires a gate to a fake clock and records when it completes.
type run struct {
	clock  *clocktesting.FakeClock
	scalar gate.Scalar
	log    *logger.BufferLogger
	gate   *gate.Gate
	start  time.Time

	fired   int
	firedAt time.Duration
}

func newRun(t *testing.T, opts ...gate.Option) *run {
	t.Helper()
	r := &run{
		clock:  clocktesting.NewFakeClock(),
		scalar: smooth.NewInstant(),
		log:    logger.NewBufferLogger(),
	}
	r.start = r.clock.Now()
	base := []gate.Option{
		gate.WithClock(r.clock),
		gate.WithScalar(r.scalar),
		gate.WithLogger(r.log),
	}
	r.gate = gate.New(append(base, opts...)...)
	return r
}

// newRunWithScalar builds a run around a custom scalar.
func newRunWithScalar(t *testing.T, s gate.Scalar, opts ...gate.Option) *run {
	t.Helper()
	r := newRun(t, append([]gate.Option{gate.WithScalar(s)}, opts...)...)
	r.scalar = s
	return r
}

func (r *run) activate(cfg gate.Config, w gate.Watcher) gate.Disposable {
	return r.gate.Activate(cfg, w, r.onComplete)
}

func (r *run) onComplete() {
	r.fired++
	r.firedAt = r.clock.Now().Sub(r.start)
}

// signalAt returns a signal that fires after d on the run's clock.
func (r *run) signalAt(d time.Duration) *watch.Signal {
	s := watch.NewSignal()
	r.clock.AfterFunc(d, s.Fire)
	return s
}

func TestGate_ReadinessWithoutHold(t *testing.T) {
	r := newRun(t)
	sig := r.signalAt(50 * time.Millisecond)

	r.activate(gate.Config{}, sig)
	assert.Equal(t, gate.PhaseAwaitingReadiness, r.gate.Phase())

	r.clock.Advance(49 * time.Millisecond)
	assert.Zero(t, r.fired)

	r.clock.Advance(time.Millisecond)
	assert.Equal(t, 1, r.fired)
	assert.Equal(t, 50*time.Millisecond, r.firedAt)
	assert.Equal(t, gate.OutcomeReady, r.gate.Outcome())
	assert.Equal(t, gate.PhaseDone, r.gate.Phase())
	assert.Equal(t, 1.0, r.scalar.Get())
}

func TestGate_HoldOutlastsEarlyReadiness(t *testing.T) {
	r := newRun(t)
	sig := r.signalAt(500 * time.Millisecond)

	r.activate(gate.Config{MinimumHold: 2 * time.Second}, sig)

	r.clock.Advance(time.Second)
	assert.True(t, sig.Done())
	assert.Zero(t, r.fired, "readiness alone must not finish the gate during the hold")
	assert.Equal(t, gate.PhaseHolding, r.gate.Phase())

	r.clock.Advance(time.Second)
	assert.Equal(t, 1, r.fired)
	assert.Equal(t, 2*time.Second, r.firedAt)
	assert.Equal(t, gate.OutcomeReady, r.gate.Outcome())
}

func TestGate_TimeoutWithoutHold(t *testing.T) {
	r := newRun(t)

	r.activate(gate.Config{Timeout: time.Second}, watch.NewSignal())

	r.clock.Advance(999 * time.Millisecond)
	assert.Zero(t, r.fired)

	r.clock.Advance(time.Millisecond)
	assert.Equal(t, 1, r.fired)
	assert.Equal(t, time.Second, r.firedAt)
	assert.Equal(t, gate.OutcomeTimedOut, r.gate.Outcome())
	assert.True(t, r.log.HasLevel("warn"), "a timeout is reported as a warning")
}

func TestGate_TimeoutIsLatchedUntilHoldEnds(t *testing.T) {
	r := newRun(t)

	r.activate(gate.Config{MinimumHold: 2 * time.Second, Timeout: time.Second}, watch.NewSignal())

	r.clock.Advance(time.Second)
	assert.Zero(t, r.fired)
	assert.Equal(t, gate.OutcomeTimedOut, r.gate.Outcome())
	assert.Equal(t, gate.PhaseHolding, r.gate.Phase())

	r.clock.Advance(time.Second)
	assert.Equal(t, 1, r.fired)
	assert.Equal(t, 2*time.Second, r.firedAt)
	assert.Equal(t, gate.OutcomeTimedOut, r.gate.Outcome())
}

func TestGate_LateReadinessDoesNotOverrideTimeout(t *testing.T) {
	r := newRun(t)
	sig := r.signalAt(1500 * time.Millisecond)

	r.activate(gate.Config{MinimumHold: 2 * time.Second, Timeout: time.Second}, sig)
	r.clock.Advance(3 * time.Second)

	assert.Equal(t, 1, r.fired)
	assert.Equal(t, 2*time.Second, r.firedAt)
	assert.Equal(t, gate.OutcomeTimedOut, r.gate.Outcome())
}

func TestGate_DisposeDuringHold(t *testing.T) {
	r := newRun(t)
	sig := r.signalAt(time.Second)

	sub := r.activate(gate.Config{MinimumHold: 5 * time.Second, Timeout: 3 * time.Second}, sig)

	r.clock.Advance(10 * time.Millisecond)
	sub.Dispose()
	sub.Dispose()

	r.clock.Advance(10 * time.Second)
	assert.Zero(t, r.fired)
	assert.Equal(t, gate.PhaseCancelled, r.gate.Phase())
	assert.Zero(t, r.clock.Pending(), "dispose stops every gate timer")
}

func TestGate_NeverFiresSynchronously(t *testing.T) {
	r := newRun(t)
	sig := watch.NewSignal()
	sig.Fire()

	r.activate(gate.Config{}, sig)
	assert.Zero(t, r.fired, "completion must not run inside Activate")
	assert.Equal(t, gate.PhaseFinalizing, r.gate.Phase())

	r.clock.Advance(0)
	assert.Equal(t, 1, r.fired)
	assert.Zero(t, r.firedAt)
}

func TestGate_FinishDelay(t *testing.T) {
	r := newRun(t)
	sig := watch.NewSignal()
	sig.Fire()

	r.activate(gate.Config{FinishDelay: 300 * time.Millisecond}, sig)

	r.clock.Advance(299 * time.Millisecond)
	assert.Zero(t, r.fired)
	assert.Equal(t, 1.0, r.gate.Progress(), "progress is full while the finish delay runs")

	r.clock.Advance(time.Millisecond)
	assert.Equal(t, 1, r.fired)
	assert.Equal(t, 300*time.Millisecond, r.firedAt)
}

func TestGate_FiresAtMostOnce(t *testing.T) {
	r := newRun(t)
	a := r.signalAt(100 * time.Millisecond)
	b := r.signalAt(200 * time.Millisecond)

	sub := r.activate(gate.Config{Timeout: 150 * time.Millisecond}, watch.All(a, b))
	r.clock.Advance(time.Second)
	sub.Dispose()
	r.clock.Advance(time.Second)

	assert.Equal(t, 1, r.fired)
	assert.True(t, r.gate.Fired())
	assert.Equal(t, gate.PhaseDone, r.gate.Phase(), "dispose after completion is a no-op")
}

func TestGate_MinimumHoldRespected(t *testing.T) {
	holds := []time.Duration{
		100 * time.Millisecond,
		250 * time.Millisecond,
		time.Second,
		2500 * time.Millisecond,
	}

	for _, hold := range holds {
		t.Run(hold.String(), func(t *testing.T) {
			r := newRun(t)
			sig := watch.NewSignal()
			sig.Fire()

			r.activate(gate.Config{MinimumHold: hold, Timeout: 10 * time.Millisecond}, sig)

			r.clock.Advance(hold - time.Millisecond)
			assert.Zero(t, r.fired)

			r.clock.Advance(time.Millisecond)
			assert.Equal(t, 1, r.fired)
			assert.Equal(t, hold, r.firedAt)
		})
	}
}

func TestGate_TimeoutCeiling(t *testing.T) {
	timeouts := []time.Duration{50 * time.Millisecond, time.Second, 7 * time.Second}

	for _, timeout := range timeouts {
		t.Run(timeout.String(), func(t *testing.T) {
			r := newRun(t)
			finish := 200 * time.Millisecond

			r.activate(gate.Config{Timeout: timeout, FinishDelay: finish}, nil)
			r.clock.Advance(timeout + finish)

			assert.Equal(t, 1, r.fired)
			assert.LessOrEqual(t, r.firedAt, timeout+finish)
		})
	}
}

func TestGate_ProgressIsMonotonic(t *testing.T) {
	r := newRun(t)
	var mu sync.Mutex
	var values []float64
	r.scalar.Subscribe(func(v float64) {
		mu.Lock()
		values = append(values, v)
		mu.Unlock()
	})
	sig := r.signalAt(3 * time.Second)

	r.activate(gate.Config{MinimumHold: 2 * time.Second}, sig)
	r.clock.AdvanceBy(4*time.Second, 50*time.Millisecond, nil)

	require.Equal(t, 1, r.fired)
	require.NotEmpty(t, values)
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1], "progress moved backwards at step %d", i)
	}
	assert.Equal(t, 1.0, values[len(values)-1])
}

func TestGate_ProgressDuringHold(t *testing.T) {
	r := newRun(t)

	r.activate(gate.Config{MinimumHold: 2 * time.Second}, watch.NewSignal())

	r.clock.Advance(time.Second)
	assert.InDelta(t, 0.4, r.gate.Progress(), 1e-9)

	r.clock.Advance(500 * time.Millisecond)
	assert.InDelta(t, 0.6, r.gate.Progress(), 1e-9)
	assert.InDelta(t, 0.6, r.scalar.Get(), 1e-9)
}

func TestGate_StalledReadiness(t *testing.T) {
	r := newRun(t)

	r.activate(gate.Config{MinimumHold: time.Second}, watch.NewSignal())
	r.clock.Advance(time.Minute)

	assert.Zero(t, r.fired)
	assert.Equal(t, gate.PhaseAwaitingReadiness, r.gate.Phase())
	assert.InDelta(t, gate.TimerWeight, r.gate.Progress(), 1e-9)
	assert.Zero(t, r.clock.Pending(), "the hold timer stops once the hold is over")
}

func TestGate_ReadinessClearsTimeout(t *testing.T) {
	r := newRun(t)
	sig := r.signalAt(100 * time.Millisecond)

	r.activate(gate.Config{Timeout: 5 * time.Second}, sig)
	r.clock.Advance(100 * time.Millisecond)

	assert.Equal(t, 1, r.fired)
	assert.Zero(t, r.clock.Pending())
	assert.False(t, r.log.HasLevel("warn"))
}

func TestGate_DisposeDuringFinishDelay(t *testing.T) {
	r := newRun(t)
	sig := r.signalAt(100 * time.Millisecond)

	sub := r.activate(gate.Config{FinishDelay: time.Second}, sig)
	r.clock.Advance(500 * time.Millisecond)
	require.Equal(t, gate.PhaseFinalizing, r.gate.Phase())

	sub.Dispose()
	r.clock.Advance(5 * time.Second)

	assert.Zero(t, r.fired)
	assert.Equal(t, gate.PhaseCancelled, r.gate.Phase())
}

func TestGate_DisposeFromCompletionCallback(t *testing.T) {
	r := newRun(t)
	sig := watch.NewSignal()
	sig.Fire()

	var sub gate.Disposable
	calls := 0
	sub = r.gate.Activate(gate.Config{}, sig, func() {
		calls++
		sub.Dispose()
	})
	r.clock.Advance(time.Second)

	assert.Equal(t, 1, calls)
	assert.Equal(t, gate.PhaseDone, r.gate.Phase())
}

func TestGate_SessionSkipStillHolds(t *testing.T) {
	store := session.NewMemory()
	require.NoError(t, store.Set(gate.DefaultSessionKey, "2024-01-01T00:00:00Z"))
	r := newRun(t, gate.WithSessionStore(store))

	r.activate(gate.Config{MinimumHold: 2 * time.Second, RunOncePerSession: true}, watch.NewSignal())

	r.clock.Advance(1999 * time.Millisecond)
	assert.Zero(t, r.fired)

	r.clock.Advance(time.Millisecond)
	assert.Equal(t, 1, r.fired)
	assert.Equal(t, 2*time.Second, r.firedAt)
	assert.Equal(t, gate.OutcomeSession, r.gate.Outcome())
}

func TestGate_SessionSkipWithoutHold(t *testing.T) {
	store := session.NewMemory()
	require.NoError(t, store.Set(gate.DefaultSessionKey, "done"))
	r := newRun(t, gate.WithSessionStore(store))

	r.activate(gate.Config{RunOncePerSession: true}, nil)
	assert.Zero(t, r.fired)

	r.clock.Advance(0)
	assert.Equal(t, 1, r.fired)
	assert.Equal(t, gate.OutcomeSession, r.gate.Outcome())
}

func TestGate_PersistsSessionFlag(t *testing.T) {
	store := session.NewMemory()
	r := newRun(t, gate.WithSessionStore(store), gate.WithSessionKey("app.loaded"))
	sig := r.signalAt(10 * time.Millisecond)

	r.activate(gate.Config{RunOncePerSession: true}, sig)
	r.clock.Advance(10 * time.Millisecond)
	require.Equal(t, 1, r.fired)

	v, ok, err := store.Get("app.loaded")
	require.NoError(t, err)
	assert.True(t, ok)
	ts, err := time.Parse(time.RFC3339, v)
	require.NoError(t, err)
	assert.WithinDuration(t, r.start, ts, time.Second)

	_, ok, err = store.Get(gate.DefaultSessionKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGate_SessionFlagIgnoredWhenDisabled(t *testing.T) {
	store := session.NewMemory()
	require.NoError(t, store.Set(gate.DefaultSessionKey, "done"))
	r := newRun(t, gate.WithSessionStore(store))

	r.activate(gate.Config{Timeout: time.Second}, watch.NewSignal())
	r.clock.Advance(time.Second)

	assert.Equal(t, gate.OutcomeTimedOut, r.gate.Outcome())
}

// brokenStore fails every operation.
type brokenStore struct{}

func (brokenStore) Get(string) (string, bool, error) { return "", false, errors.New("store offline") }
func (brokenStore) Set(string, string) error         { return errors.New("store offline") }
func (brokenStore) Delete(string) error              { return errors.New("store offline") }

func TestGate_SessionStoreErrors(t *testing.T) {
	r := newRun(t, gate.WithSessionStore(brokenStore{}))
	sig := r.signalAt(10 * time.Millisecond)

	r.activate(gate.Config{RunOncePerSession: true}, sig)
	r.clock.Advance(10 * time.Millisecond)

	assert.Equal(t, 1, r.fired, "store failures never block completion")
	assert.Equal(t, gate.OutcomeReady, r.gate.Outcome())

	warnings := 0
	for _, m := range r.log.Messages() {
		if m.Level == "warn" {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings, "one warning for the read and one for the write")
}

func TestGate_SecondActivateIgnored(t *testing.T) {
	r := newRun(t)
	sig := r.signalAt(100 * time.Millisecond)

	r.activate(gate.Config{}, sig)
	second := 0
	sub := r.gate.Activate(gate.Config{}, watch.NewSignal(), func() { second++ })
	sub.Dispose()

	r.clock.Advance(time.Second)
	assert.Equal(t, 1, r.fired)
	assert.Zero(t, second)
	assert.True(t, r.log.HasLevel("warn"))
}

func TestGate_NilWatcherAndCallback(t *testing.T) {
	r := newRun(t)

	r.gate.Activate(gate.Config{Timeout: 100 * time.Millisecond}, nil, nil)
	r.clock.Advance(100 * time.Millisecond)

	assert.True(t, r.gate.Fired())
	assert.Equal(t, gate.OutcomeTimedOut, r.gate.Outcome())
}

func TestGate_NegativeDurationsAreZero(t *testing.T) {
	r := newRun(t)
	sig := watch.NewSignal()
	sig.Fire()

	r.activate(gate.Config{MinimumHold: -time.Second, Timeout: -time.Second, FinishDelay: -time.Second}, sig)
	r.clock.Advance(0)

	assert.Equal(t, 1, r.fired)
}

func TestGate_Accessors(t *testing.T) {
	r := newRun(t)
	assert.Equal(t, gate.PhaseIdle, r.gate.Phase())
	assert.Zero(t, r.gate.Elapsed())
	assert.Empty(t, r.gate.RunID())

	r.activate(gate.Config{MinimumHold: time.Second}, watch.NewSignal())
	r.clock.Advance(300 * time.Millisecond)

	assert.Len(t, r.gate.RunID(), 8)
	assert.Equal(t, 300*time.Millisecond, r.gate.Elapsed())
}

// lagScalar records targets but only moves when the test says so.
type lagScalar struct {
	mu      sync.Mutex
	value   float64
	targets []float64
	subs    map[int]func(float64)
	next    int
}

func newLagScalar() *lagScalar {
	return &lagScalar{subs: make(map[int]func(float64))}
}

func (s *lagScalar) Set(target float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets, target)
}

func (s *lagScalar) Get() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

func (s *lagScalar) Subscribe(onChange func(float64)) gate.Disposable {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = onChange
	s.mu.Unlock()
	return gate.DisposeFunc(func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	})
}

// moveTo sets the displayed value and notifies subscribers.
func (s *lagScalar) moveTo(v float64) {
	s.mu.Lock()
	s.value = v
	fns := make([]func(float64), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (s *lagScalar) subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func TestGate_SettleBudget(t *testing.T) {
	lag := newLagScalar()
	r := newRunWithScalar(t, lag)
	sig := watch.NewSignal()
	sig.Fire()

	r.activate(gate.Config{}, sig)

	r.clock.Advance(gate.DefaultSettleBudget - time.Millisecond)
	assert.Zero(t, r.fired, "waits for the indicator to catch up")

	r.clock.Advance(time.Millisecond)
	assert.Equal(t, 1, r.fired)
	assert.Equal(t, gate.DefaultSettleBudget, r.firedAt)
	assert.Zero(t, lag.subscribers())
	assert.Equal(t, 1.0, lag.targets[len(lag.targets)-1])
}

func TestGate_SettleByValue(t *testing.T) {
	lag := newLagScalar()
	r := newRunWithScalar(t, lag, gate.WithSettleBudget(5*time.Second))
	sig := watch.NewSignal()
	sig.Fire()

	r.activate(gate.Config{FinishDelay: 100 * time.Millisecond}, sig)
	r.clock.Advance(300 * time.Millisecond)

	lag.moveTo(0.9)
	r.clock.Advance(time.Millisecond)
	assert.Zero(t, r.fired)

	lag.moveTo(0.996)
	r.clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, r.fired)
	assert.Equal(t, 401*time.Millisecond, r.firedAt)
	assert.Zero(t, r.clock.Pending(), "the settle budget timer is stopped")
}

func TestGate_WithSpring(t *testing.T) {
	clk := clocktesting.NewFakeClock()
	spring := smooth.NewSpring(clk)
	defer spring.Close()
	r := &run{clock: clk, scalar: spring, log: logger.NewBufferLogger(), start: clk.Now()}
	r.gate = gate.New(gate.WithClock(clk), gate.WithScalar(spring), gate.WithLogger(r.log))

	sig := r.signalAt(100 * time.Millisecond)
	r.activate(gate.Config{}, sig)

	r.clock.Advance(100*time.Millisecond + gate.DefaultSettleBudget)
	assert.Equal(t, 1, r.fired)
	assert.Less(t, r.firedAt, 100*time.Millisecond+gate.DefaultSettleBudget, "the spring settles before the budget runs out")
	assert.Equal(t, 1.0, spring.Target())
}

func TestGate_WithoutScalar(t *testing.T) {
	clk := clocktesting.NewFakeClock()
	g := gate.New(gate.WithClock(clk))
	sig := watch.NewSignal()
	sig.Fire()

	fired := false
	g.Activate(gate.Config{}, sig, func() { fired = true })
	clk.Advance(0)

	assert.True(t, fired)
	assert.Equal(t, 1.0, g.Progress())
}

func TestPhase_String(t *testing.T) {
	tests := []struct {
		phase    gate.Phase
		want     string
		terminal bool
	}{
		{gate.PhaseIdle, "idle", false},
		{gate.PhaseHolding, "holding", false},
		{gate.PhaseAwaitingReadiness, "awaiting-readiness", false},
		{gate.PhaseFinalizing, "finalizing", false},
		{gate.PhaseDone, "done", true},
		{gate.PhaseCancelled, "cancelled", true},
		{gate.Phase(99), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.phase.String())
			assert.Equal(t, tt.terminal, tt.phase.Terminal())
		})
	}
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "none", gate.OutcomeNone.String())
	assert.Equal(t, "ready", gate.OutcomeReady.String())
	assert.Equal(t, "timed-out", gate.OutcomeTimedOut.String())
	assert.Equal(t, "session", gate.OutcomeSession.String())
}

func TestGate_RealClock(t *testing.T) {
	g := gate.New(gate.WithScalar(smooth.NewInstant()))
	sig := watch.NewSignal()
	done := make(chan struct{})

	g.Activate(gate.Config{MinimumHold: 20 * time.Millisecond, Timeout: time.Second}, sig, func() { close(done) })
	go sig.Fire()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("gate did not complete")
	}
	assert.Equal(t, gate.OutcomeReady, g.Outcome())
	assert.GreaterOrEqual(t, g.Elapsed(), 20*time.Millisecond)
}

func TestGate_RealClockDisposeRace(t *testing.T) {
	for i := 0; i < 20; i++ {
		g := gate.New()
		sig := watch.NewSignal()
		var mu sync.Mutex
		fired := false

		sub := g.Activate(gate.Config{}, sig, func() {
			mu.Lock()
			fired = true
			mu.Unlock()
		})
		go sig.Fire()
		sub.Dispose()
		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		f := fired
		mu.Unlock()
		if f {
			assert.Equal(t, gate.PhaseDone, g.Phase())
		} else {
			assert.Equal(t, gate.PhaseCancelled, g.Phase())
		}
	}
}

func TestGate_DoneAfterSessionWrite(t *testing.T) {
	store := session.NewMemory()
	r := newRun(t, gate.WithSessionStore(store))
	sig := r.signalAt(10 * time.Millisecond)

	r.activate(gate.Config{RunOncePerSession: true}, sig)
	select {
	case <-r.gate.Done():
		t.Fatal("done before the gate fired")
	default:
	}

	r.clock.Advance(10 * time.Millisecond)
	select {
	case <-r.gate.Done():
	default:
		t.Fatal("done not closed after firing")
	}
	_, ok, err := store.Get(gate.DefaultSessionKey)
	require.NoError(t, err)
	assert.True(t, ok, "flag written before done closes")
}

func TestGate_DoneAfterDispose(t *testing.T) {
	r := newRun(t)
	sub := r.activate(gate.Config{MinimumHold: time.Second}, watch.NewSignal())

	sub.Dispose()
	sub.Dispose()

	select {
	case <-r.gate.Done():
	default:
		t.Fatal("done not closed after dispose")
	}
	assert.Zero(t, r.fired)
}

func TestGate_DisposeInsideWatcherCallback(t *testing.T) {
	r := newRun(t)

	var onChange func(bool)
	w := gate.WatcherFunc(func(fn func(bool)) gate.Disposable {
		onChange = fn
		fn(false)
		return gate.DisposeFunc(func() {})
	})

	var sub gate.Disposable
	r.clock.AfterFunc(100*time.Millisecond, func() {
		sub.Dispose()
		onChange(true)
	})
	sub = r.activate(gate.Config{}, w)

	r.clock.Advance(5 * time.Second)
	assert.Zero(t, r.fired)
	assert.Equal(t, gate.PhaseCancelled, r.gate.Phase())
	assert.Zero(t, r.clock.Pending())
}

func TestGate_DisposeFromSignalSubscriber(t *testing.T) {
	r := newRun(t)
	sig := watch.NewSignal()

	var sub gate.Disposable
	sig.Subscribe(func(done bool) {
		if done {
			sub.Dispose()
		}
	})
	sub = r.activate(gate.Config{Timeout: time.Second}, sig)
	r.clock.AfterFunc(100*time.Millisecond, sig.Fire)

	r.clock.Advance(5 * time.Second)
	assert.Zero(t, r.fired)
	assert.Equal(t, gate.PhaseCancelled, r.gate.Phase())
}

func TestGate_SettleThreshold(t *testing.T) {
	lag := newLagScalar()
	r := newRunWithScalar(t, lag,
		gate.WithSettleBudget(5*time.Second),
		gate.WithSettleThreshold(0.9),
	)
	sig := watch.NewSignal()
	sig.Fire()

	r.activate(gate.Config{}, sig)
	r.clock.Advance(100 * time.Millisecond)

	lag.moveTo(0.85)
	r.clock.Advance(time.Millisecond)
	assert.Zero(t, r.fired)

	lag.moveTo(0.9)
	r.clock.Advance(0)
	assert.Equal(t, 1, r.fired)
	assert.Equal(t, 101*time.Millisecond, r.firedAt)
}

func TestGate_SettleThresholdOutOfRangeIgnored(t *testing.T) {
	lag := newLagScalar()
	r := newRunWithScalar(t, lag,
		gate.WithSettleBudget(5*time.Second),
		gate.WithSettleThreshold(1.5),
		gate.WithSettleThreshold(0),
	)
	sig := watch.NewSignal()
	sig.Fire()

	r.activate(gate.Config{}, sig)
	lag.moveTo(0.99)
	r.clock.Advance(time.Millisecond)
	assert.Zero(t, r.fired, "default threshold still applies")

	lag.moveTo(gate.DefaultSettleThreshold)
	r.clock.Advance(0)
	assert.Equal(t, 1, r.fired)
}
