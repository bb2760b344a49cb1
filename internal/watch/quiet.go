package watch

import (
	"sync"
	"time"

	"github.com/rileyhilliard/loadgate/internal/clock"
	"github.com/rileyhilliard/loadgate/internal/gate"
)

// Quiet is done once inner is done and a further quiet period has passed.
// It smooths over services that accept connections slightly before they can
// serve.
func Quiet(inner gate.Watcher, quiet time.Duration, c clock.Clock) gate.Watcher {
	if c == nil {
		c = clock.Real()
	}
	return gate.WatcherFunc(func(onChange func(bool)) gate.Disposable {
		var (
			mu       sync.Mutex
			timer    clock.Timer
			started  bool
			disposed bool
		)

		onChange(false)

		sub := inner.Subscribe(func(d bool) {
			if !d {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if disposed || started {
				return
			}
			started = true
			timer = c.AfterFunc(quiet, func() {
				mu.Lock()
				if disposed {
					mu.Unlock()
					return
				}
				mu.Unlock()
				onChange(true)
			})
		})

		return gate.DisposeFunc(func() {
			mu.Lock()
			disposed = true
			t := timer
			mu.Unlock()
			if t != nil {
				t.Stop()
			}
			if sub != nil {
				sub.Dispose()
			}
		})
	})
}
