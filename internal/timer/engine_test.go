package timer

import (
	"testing"
	"time"
)

var engineBase = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func runningRec(stage Stage, remaining time.Duration) Record {
	return Record{
		Row:      1,
		Key:      "steel 1",
		Start:    engineBase.Add(remaining - 12*time.Hour),
		Duration: 12 * time.Hour,
		Status:   StatusRunning,
		Stage:    stage,
	}
}

func TestDecide(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		stage     Stage
		remaining time.Duration
		want      Stage
		advance   bool
		terminal  bool
	}{
		{name: "above every cutoff", stage: StageNone, remaining: 4*time.Hour + time.Minute, advance: false},
		{name: "none to four_h at 3h59m", stage: StageNone, remaining: 3*time.Hour + 59*time.Minute, want: StageFourH, advance: true},
		{name: "four_h stays silent in band", stage: StageFourH, remaining: 3*time.Hour + 50*time.Minute, advance: false},
		{name: "four_h to two_h", stage: StageFourH, remaining: 2 * time.Hour, want: StageTwoH, advance: true},
		{name: "two_h to one_h", stage: StageTwoH, remaining: 59 * time.Minute, want: StageOneH, advance: true},
		{name: "one_h to thirty_m", stage: StageOneH, remaining: 30 * time.Minute, want: StageThirtyM, advance: true},
		{name: "skipped intermediates jump once", stage: StageNone, remaining: 25 * time.Minute, want: StageThirtyM, advance: true},
		{name: "unknown stage fails open", stage: StageInvalid, remaining: 25 * time.Minute, want: StageThirtyM, advance: true},
		{name: "expiry beats thresholds", stage: StageNone, remaining: -time.Second, want: StageDone, advance: true, terminal: true},
		{name: "expiry at exactly zero", stage: StageThirtyM, remaining: 0, want: StageDone, advance: true, terminal: true},
		{name: "done never fires again", stage: StageDone, remaining: -time.Hour, advance: false},
		{name: "thirty_m does not regress to one_h", stage: StageThirtyM, remaining: 45 * time.Minute, advance: false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			d := Decide(runningRec(tc.stage, tc.remaining), engineBase)
			if d.Advance != tc.advance {
				t.Fatalf("Advance = %v, want %v", d.Advance, tc.advance)
			}
			if tc.advance && d.Stage != tc.want {
				t.Fatalf("Stage = %v, want %v", d.Stage, tc.want)
			}
			if d.Terminal != tc.terminal {
				t.Fatalf("Terminal = %v, want %v", d.Terminal, tc.terminal)
			}
		})
	}
}

func TestDecideIgnoresNonRunning(t *testing.T) {
	t.Parallel()
	rec := runningRec(StageNone, 10*time.Minute)
	rec.Status = StatusDone
	if d := Decide(rec, engineBase); d.Advance {
		t.Fatalf("non-running record advanced to %v", d.Stage)
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	t.Parallel()
	rec := runningRec(StageTwoH, 42*time.Minute)
	first := Decide(rec, engineBase)
	for i := 0; i < 5; i++ {
		if d := Decide(rec, engineBase); d != first {
			t.Fatalf("decision %d = %+v, first = %+v", i, d, first)
		}
	}
}

// Applying each decision back to the record must never move the stage
// backwards, regardless of where the clock lands.
func TestStageNeverRegresses(t *testing.T) {
	t.Parallel()
	rec := runningRec(StageNone, 5*time.Hour)
	now := engineBase
	prev := rec.Stage
	for step := 0; step < 40; step++ {
		d := Decide(rec, now)
		if d.Advance {
			if d.Stage <= prev {
				t.Fatalf("stage regressed: %v -> %v at step %d", prev, d.Stage, step)
			}
			rec.Stage = d.Stage
			if d.Terminal {
				rec.Status = StatusDone
			}
			prev = d.Stage
		}
		now = now.Add(10 * time.Minute)
	}
	if rec.Stage != StageDone || rec.Status != StatusDone {
		t.Fatalf("timer did not finish: stage=%v status=%q", rec.Stage, rec.Status)
	}
}
