package watch

import (
	"sync"

	"github.com/rileyhilliard/loadgate/internal/gate"
)

// Signal is the default watcher: one external "finished loading" signal.
type Signal struct {
	mu   sync.Mutex
	done bool
	subs map[int]func(bool)
	next int
}

// NewSignal creates a pending signal.
func NewSignal() *Signal {
	return &Signal{subs: make(map[int]func(bool))}
}

// Fire marks the signal done and notifies subscribers. Later calls are no-ops.
func (s *Signal) Fire() {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	subs := snapshot(s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(true)
	}
}

// Done reports whether Fire has been called.
func (s *Signal) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Subscribe reports the current state synchronously, then reports done once.
func (s *Signal) Subscribe(onChange func(done bool)) gate.Disposable {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = onChange
	s.mu.Unlock()

	onChange(s.Done())

	return gate.DisposeFunc(func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	})
}

func snapshot[T any](m map[int]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
