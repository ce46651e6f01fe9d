package fetch

import "time"

// Verdict is the watchdog decision after one poll tick.
type Verdict int

// Watchdog verdicts.
const (
	VerdictContinue Verdict = iota
	VerdictOverallTimeout
	VerdictIdleTimeout
)

// String names the verdict for logs.
func (verdict Verdict) String() string {
	switch verdict {
	case VerdictOverallTimeout:
		return "overall_timeout"
	case VerdictIdleTimeout:
		return "idle_timeout"
	default:
		return "continue"
	}
}

// Watchdog decides when a supervised process tree has run too long or sat idle too long.
// It holds no clock; callers advance it once per poll tick with the time elapsed since the previous tick.
type Watchdog struct {
	policy               Policy
	overallTimeout       time.Duration
	idleTimeout          time.Duration
	elapsedOverall       time.Duration
	elapsedSinceActivity time.Duration
	thresholdsDoubled    bool
}

// NewWatchdog constructs a watchdog for one supervised process.
func NewWatchdog(policy Policy) *Watchdog {
	sanitized := policy.Sanitize()
	return &Watchdog{
		policy:         sanitized,
		overallTimeout: sanitized.OverallTimeout,
		idleTimeout:    sanitized.IdleTimeout,
	}
}

// Advance records one tick and the process tree observed at it.
//
// Any running or idle process in the tree resets the idle countdown. The first time the tree
// reaches the growth threshold both timeouts are multiplied once. The overall timeout is checked
// before the idle timeout.
func (watchdog *Watchdog) Advance(elapsed time.Duration, snapshot ProcessTreeSnapshot) Verdict {
	watchdog.elapsedOverall += elapsed
	watchdog.elapsedSinceActivity += elapsed

	if !watchdog.thresholdsDoubled && snapshot.Size() >= watchdog.policy.GrowthProcessThreshold {
		multiplier := time.Duration(watchdog.policy.GrowthMultiplier)
		watchdog.overallTimeout *= multiplier
		watchdog.idleTimeout *= multiplier
		watchdog.thresholdsDoubled = true
	}

	if snapshot.Active() {
		watchdog.elapsedSinceActivity = 0
	}

	if watchdog.elapsedOverall >= watchdog.overallTimeout {
		return VerdictOverallTimeout
	}
	if watchdog.elapsedSinceActivity >= watchdog.idleTimeout {
		return VerdictIdleTimeout
	}
	return VerdictContinue
}

// OverallTimeout returns the current overall threshold, including any growth multiplier.
func (watchdog *Watchdog) OverallTimeout() time.Duration {
	return watchdog.overallTimeout
}

// IdleTimeout returns the current idle threshold, including any growth multiplier.
func (watchdog *Watchdog) IdleTimeout() time.Duration {
	return watchdog.idleTimeout
}

// Elapsed returns the total and since-activity durations accumulated so far.
func (watchdog *Watchdog) Elapsed() (overall time.Duration, sinceActivity time.Duration) {
	return watchdog.elapsedOverall, watchdog.elapsedSinceActivity
}

// ThresholdsGrown reports whether the growth multiplier has been applied.
func (watchdog *Watchdog) ThresholdsGrown() bool {
	return watchdog.thresholdsDoubled
}
