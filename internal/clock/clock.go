// Package clock abstracts time so gates, watchers and animations can be
// driven by a fake clock in tests instead of real wall-clock waits.
package clock

import (
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
// Stop reports whether the call prevented the callback from running.
type Timer interface {
	Stop() bool
}

// Clock provides the current time and one-shot scheduling.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

// Real returns a Clock backed by the time package.
// AfterFunc callbacks run on their own goroutine.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// repeater re-arms a one-shot timer after every run of f.
type repeater struct {
	mu       sync.Mutex
	clock    Clock
	interval time.Duration
	f        func()
	current  Timer
	stopped  bool
}

// Every runs f each interval until the returned Timer is stopped.
// The first run happens one interval after the call. Runs never overlap:
// the next run is scheduled only after f returns.
func Every(c Clock, interval time.Duration, f func()) Timer {
	if interval <= 0 {
		interval = time.Millisecond
	}
	r := &repeater{clock: c, interval: interval, f: f}
	r.schedule()
	return r
}

func (r *repeater) schedule() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.current = r.clock.AfterFunc(r.interval, r.fire)
}

func (r *repeater) fire() {
	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		return
	}
	r.f()
	r.schedule()
}

// Stop cancels all future runs. A run already in progress completes.
func (r *repeater) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	r.stopped = true
	if r.current != nil {
		r.current.Stop()
	}
	return true
}
