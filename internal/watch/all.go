package watch

import (
	"sync"

	"github.com/rileyhilliard/loadgate/internal/gate"
)

// All is done when every child watcher is done. With no children it is done
// immediately.
func All(watchers ...gate.Watcher) gate.Watcher {
	return gate.WatcherFunc(func(onChange func(bool)) gate.Disposable {
		var (
			mu       sync.Mutex
			done     = make([]bool, len(watchers))
			pending  = len(watchers)
			reported bool
			disposed bool
		)

		// Children may report synchronously from Subscribe; the final
		// report is deferred until every child is subscribed.
		subscribing := true

		report := func() {
			mu.Lock()
			if disposed || reported || pending > 0 || subscribing {
				mu.Unlock()
				return
			}
			reported = true
			mu.Unlock()
			onChange(true)
		}

		subs := make([]gate.Disposable, 0, len(watchers))
		for i, w := range watchers {
			sub := w.Subscribe(func(d bool) {
				if !d {
					return
				}
				mu.Lock()
				if !done[i] {
					done[i] = true
					pending--
				}
				mu.Unlock()
				report()
			})
			subs = append(subs, sub)
		}

		mu.Lock()
		subscribing = false
		ready := pending == 0
		mu.Unlock()

		if !ready {
			onChange(false)
		}
		report()

		return gate.DisposeFunc(func() {
			mu.Lock()
			disposed = true
			mu.Unlock()
			for _, s := range subs {
				if s != nil {
					s.Dispose()
				}
			}
		})
	})
}
