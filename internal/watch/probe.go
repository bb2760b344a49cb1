package watch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/rileyhilliard/loadgate/internal/clock"
	"github.com/rileyhilliard/loadgate/internal/gate"
	"github.com/rileyhilliard/loadgate/internal/logger"
)

const (
	// DefaultProbeInterval is the wait between failed attempts.
	DefaultProbeInterval = 250 * time.Millisecond

	// DefaultAttemptTimeout bounds a single attempt.
	DefaultAttemptTimeout = 2 * time.Second
)

// Check performs one readiness attempt. A nil error means ready.
type Check func(ctx context.Context) error

// Probe polls a Check until it passes. Each subscription runs its own
// attempt loop; attempts never overlap.
type Probe struct {
	name           string
	check          Check
	clock          clock.Clock
	interval       time.Duration
	attemptTimeout time.Duration
	log            logger.Logger
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithProbeClock sets the clock that schedules attempts.
func WithProbeClock(c clock.Clock) ProbeOption {
	return func(p *Probe) { p.clock = c }
}

// WithProbeInterval sets the wait between failed attempts.
func WithProbeInterval(d time.Duration) ProbeOption {
	return func(p *Probe) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithAttemptTimeout bounds each attempt.
func WithAttemptTimeout(d time.Duration) ProbeOption {
	return func(p *Probe) {
		if d > 0 {
			p.attemptTimeout = d
		}
	}
}

// WithProbeLogger sets the logger for failed attempts.
func WithProbeLogger(l logger.Logger) ProbeOption {
	return func(p *Probe) { p.log = l }
}

// NewProbe creates a watcher that polls check. The name appears in logs.
func NewProbe(name string, check Check, opts ...ProbeOption) *Probe {
	p := &Probe{
		name:           name,
		check:          check,
		clock:          clock.Real(),
		interval:       DefaultProbeInterval,
		attemptTimeout: DefaultAttemptTimeout,
		log:            logger.Noop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the probe's display name.
func (p *Probe) Name() string {
	return p.name
}

type probeRun struct {
	p        *Probe
	onChange func(bool)
	ctx      context.Context
	cancel   context.CancelFunc

	mu       sync.Mutex
	timer    clock.Timer
	done     bool
	disposed bool
	attempts int
}

// Subscribe reports pending, then starts attempting. The first attempt is
// scheduled immediately on the probe's clock.
func (p *Probe) Subscribe(onChange func(done bool)) gate.Disposable {
	ctx, cancel := context.WithCancel(context.Background())
	r := &probeRun{p: p, onChange: onChange, ctx: ctx, cancel: cancel}

	onChange(false)

	r.mu.Lock()
	if !r.disposed {
		r.timer = p.clock.AfterFunc(0, r.attempt)
	}
	r.mu.Unlock()

	return gate.DisposeFunc(r.dispose)
}

func (r *probeRun) attempt() {
	r.mu.Lock()
	if r.disposed || r.done {
		r.mu.Unlock()
		return
	}
	r.attempts++
	n := r.attempts
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(r.ctx, r.p.attemptTimeout)
	err := r.p.check(ctx)
	cancel()

	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return
	}
	if err != nil {
		r.timer = r.p.clock.AfterFunc(r.p.interval, r.attempt)
		r.mu.Unlock()
		r.p.log.Debug("probe %s attempt %d: %v", r.p.name, n, err)
		return
	}
	r.done = true
	r.timer = nil
	r.mu.Unlock()

	r.p.log.Debug("probe %s ready after %d attempt(s)", r.p.name, n)
	r.onChange(true)
}

func (r *probeRun) dispose() {
	r.mu.Lock()
	r.disposed = true
	t := r.timer
	r.timer = nil
	r.mu.Unlock()

	if t != nil {
		t.Stop()
	}
	r.cancel()
}

// HTTPCheck passes when a GET to url answers with want, or with any 2xx/3xx
// status when want is 0.
func HTTPCheck(client *http.Client, url string, want int) Check {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close() //nolint:errcheck // Only the status matters

		if want != 0 {
			if resp.StatusCode != want {
				return fmt.Errorf("status %d, want %d", resp.StatusCode, want)
			}
			return nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 400 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		return nil
	}
}

// TCPCheck passes when a TCP connection to addr succeeds.
func TCPCheck(addr string) Check {
	return func(ctx context.Context) error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		return conn.Close()
	}
}

// FileCheck passes once path exists.
func FileCheck(path string) Check {
	return func(ctx context.Context) error {
		_, err := os.Stat(path)
		return err
	}
}
