// Package watch provides readiness watchers for the gate.
//
// Every watcher satisfies gate.Watcher: it reports its current state when
// subscribed and reports again once it becomes done. Done is sticky.
//
//	Signal  - a single external load signal, fired by the embedder
//	Probe   - polls a check (HTTP, TCP, file) until it passes
//	All     - done when every child watcher is done
//	Quiet   - done once a child is done and a quiet period has passed
package watch
