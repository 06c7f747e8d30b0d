package timer

import "time"

// Decision is the outcome of one engine evaluation.
type Decision struct {
	Advance bool
	Stage   Stage
	// Terminal marks the countdown-ended transition; it also flips the
	// persisted status to DONE.
	Terminal  bool
	Remaining time.Duration
}

// cutoffs ordered most-advanced first. A stage fires when remaining drops to
// or below its cutoff and the persisted stage is still behind it.
var cutoffs = []struct {
	limit time.Duration
	stage Stage
}{
	{30 * time.Minute, StageThirtyM},
	{time.Hour, StageOneH},
	{2 * time.Hour, StageTwoH},
	{4 * time.Hour, StageFourH},
}

// Decide evaluates one record against the wall clock. It is pure: no I/O, no
// memory of previous ticks, so a restart loses nothing. At most one transition
// is reported per call; skipped intermediate stages are never alerted
// retroactively.
func Decide(rec Record, now time.Time) Decision {
	d := Decision{Stage: rec.Stage, Remaining: rec.Remaining(now)}
	if !rec.Running() {
		return d
	}

	// Expiry wins over any threshold.
	if d.Remaining <= 0 {
		if rec.Stage < StageDone {
			d.Advance = true
			d.Stage = StageDone
			d.Terminal = true
		}
		return d
	}

	for _, c := range cutoffs {
		if d.Remaining <= c.limit {
			// An invalid persisted stage compares below everything, so the
			// current threshold still fires.
			if rec.Stage < c.stage {
				d.Advance = true
				d.Stage = c.stage
			}
			return d
		}
	}
	return d
}
