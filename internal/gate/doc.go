// Package gate implements the readiness gate: a one-shot state machine that
// holds a loading indicator on screen until a readiness signal arrives, a
// minimum display time has passed, or a timeout gives up waiting.
//
// # Lifecycle
//
// One Gate drives exactly one run:
//
//	g := gate.New(gate.WithScalar(spring), gate.WithSessionStore(store))
//	d := g.Activate(cfg, watcher, func() { reveal() })
//	defer d.Dispose()
//
// The run moves through explicit phases:
//
//	Holding            minimum hold not yet observed
//	AwaitingReadiness  hold observed, racing readiness against the timeout
//	Finalizing         visual progress pushed to 1, settle and finish delay
//	Done               completion callback invoked
//	Cancelled          Dispose ran before completion
//
// # Merge policy
//
// The gate never finalizes before the minimum hold. Once the hold is over it
// finalizes on the first of readiness or timeout. A timeout that fired while
// the hold was still running is latched, so finalize follows the hold
// immediately. With a zero timeout and a watcher that never resolves, the
// gate waits forever; callers that cannot guarantee readiness must set a
// timeout.
//
// # Concurrency
//
// Timer, watcher and scalar callbacks may arrive on any goroutine. All state
// lives behind one mutex, and every continuation re-checks the phase before
// acting, so a late timer after Dispose or after completion is a no-op. The
// completion callback and all collaborator calls run without the lock held,
// so they may call Dispose freely.
package gate
