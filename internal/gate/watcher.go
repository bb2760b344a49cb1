package gate

import "sync"

// Disposable releases a subscription or cancels pending work.
// Dispose must be idempotent.
type Disposable interface {
	Dispose()
}

// DisposeFunc adapts a function to Disposable. The function runs at most once.
func DisposeFunc(f func()) Disposable {
	return &disposeOnce{f: f}
}

type disposeOnce struct {
	once sync.Once
	f    func()
}

func (d *disposeOnce) Dispose() {
	d.once.Do(func() {
		if d.f != nil {
			d.f()
		}
	})
}

// Watcher observes one external done/pending condition.
//
// Subscribe must report the current state to onChange, either before
// returning or shortly after, and report again when the condition goes from
// pending to done. Done is sticky for the life of the subscription.
type Watcher interface {
	Subscribe(onChange func(done bool)) Disposable
}

// WatcherFunc adapts a function to Watcher.
type WatcherFunc func(onChange func(done bool)) Disposable

// Subscribe calls f.
func (f WatcherFunc) Subscribe(onChange func(done bool)) Disposable {
	return f(onChange)
}
