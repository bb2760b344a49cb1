package gate

const (
	// TimerWeight is the share of the indicator's travel spent on the
	// minimum-hold phase when there is one.
	TimerWeight = 0.8

	// ProgressCeiling caps blended progress until finalize sets it to 1.
	ProgressCeiling = 0.98
)

// Blend maps the gate's internal fractions to one visual progress value.
//
// Without a minimum hold the value follows readiness alone. With one, the
// hold fills the first TimerWeight of the bar and readiness fills the rest
// once the hold is over. The result never reaches 1; only finalize does that.
//
// Blend is pure. Monotonic output across a run follows from the gate never
// lowering the fractions it passes in.
func Blend(timerProgress float64, timerComplete bool, readinessProgress float64, hasMinimumHold bool) float64 {
	timerProgress = clamp01(timerProgress)
	readinessProgress = clamp01(readinessProgress)

	var v float64
	switch {
	case !hasMinimumHold:
		v = readinessProgress
	case !timerComplete:
		v = timerProgress * TimerWeight
	default:
		v = TimerWeight + readinessProgress*(1-TimerWeight)
	}

	if v > ProgressCeiling {
		return ProgressCeiling
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
