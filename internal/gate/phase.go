package gate

// Phase is the gate's position in its one-shot lifecycle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseHolding
	PhaseAwaitingReadiness
	PhaseFinalizing
	PhaseDone
	PhaseCancelled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseHolding:
		return "holding"
	case PhaseAwaitingReadiness:
		return "awaiting-readiness"
	case PhaseFinalizing:
		return "finalizing"
	case PhaseDone:
		return "done"
	case PhaseCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseCancelled
}

// Outcome records which arm let the gate finalize.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeReady
	OutcomeTimedOut
	OutcomeSession
)

func (o Outcome) String() string {
	switch o {
	case OutcomeReady:
		return "ready"
	case OutcomeTimedOut:
		return "timed-out"
	case OutcomeSession:
		return "session"
	default:
		return "none"
	}
}
