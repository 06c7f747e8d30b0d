package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cyberia73/steel-check/internal/sheet"
	logx "github.com/cyberia73/steel-check/pkg/logx"
)

type alertCall struct {
	Key      string
	Stage    Stage
	Terminal bool
}

type fakeAlerter struct {
	mu    sync.Mutex
	calls []alertCall
}

func (f *fakeAlerter) StageAdvanced(_ context.Context, key string, st Stage, terminal bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, alertCall{Key: key, Stage: st, Terminal: terminal})
}

func (f *fakeAlerter) take() []alertCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.calls
	f.calls = nil
	return out
}

func newTestPoller(t *testing.T) (*Poller, *sheet.Memory, *fakeAlerter) {
	t.Helper()
	mem := sheet.NewMemory()
	svc := NewService(NewStore(mem, "timers"), 12*time.Hour, logx.Nop())
	svc.now = func() time.Time { return svcNow }
	alerts := &fakeAlerter{}
	return NewPoller(svc, alerts, 150*time.Second, logx.Nop()), mem, alerts
}

func TestTickAdvancesAndPersistsBeforeDispatch(t *testing.T) {
	t.Parallel()
	p, mem, alerts := newTestPoller(t)
	// 3h59m remaining at svcNow
	mem.Seed("timers", [][]string{
		{"steel 1", "2026-03-01T03:59:00", "43200", "RUNNING", "0"},
	})

	p.tick(context.Background())

	cells := timerRow(t, mem, 1)
	if cells[4] != "1" {
		t.Fatalf("persisted stage = %q, want 1", cells[4])
	}
	got := alerts.take()
	if len(got) != 1 || got[0] != (alertCall{Key: "steel 1", Stage: StageFourH}) {
		t.Fatalf("alerts = %v", got)
	}

	// idempotent: same snapshot, same clock, nothing new fires
	p.tick(context.Background())
	if got := alerts.take(); len(got) != 0 {
		t.Fatalf("re-poll alerts = %v, want none", got)
	}
}

func TestTickTerminal(t *testing.T) {
	t.Parallel()
	p, mem, alerts := newTestPoller(t)
	mem.Seed("timers", [][]string{
		{"steel 1", "2026-02-28T10:00:00", "43200", "RUNNING", "4"},
	})

	p.tick(context.Background())

	cells := timerRow(t, mem, 1)
	if cells[3] != "DONE" || cells[4] != "5" {
		t.Fatalf("row after terminal tick = %v", cells)
	}
	got := alerts.take()
	if len(got) != 1 || !got[0].Terminal || got[0].Stage != StageDone {
		t.Fatalf("alerts = %v", got)
	}

	// at most one terminal notification per run
	p.tick(context.Background())
	if got := alerts.take(); len(got) != 0 {
		t.Fatalf("second terminal alerts = %v, want none", got)
	}
}

func TestTickGarbageStageFailsOpen(t *testing.T) {
	t.Parallel()
	p, mem, alerts := newTestPoller(t)
	// 25m remaining, unknown persisted stage
	mem.Seed("timers", [][]string{
		{"steel 1", "2026-03-01T00:25:00", "43200", "RUNNING", "GARBAGE"},
	})

	p.tick(context.Background())

	cells := timerRow(t, mem, 1)
	if cells[4] != "4" {
		t.Fatalf("persisted stage = %q, want 4", cells[4])
	}
	got := alerts.take()
	if len(got) != 1 || got[0].Stage != StageThirtyM {
		t.Fatalf("alerts = %v", got)
	}
}

func TestTickAbortsOnBulkReadFailure(t *testing.T) {
	t.Parallel()
	p, mem, alerts := newTestPoller(t)
	mem.Seed("timers", [][]string{
		{"steel 1", "2026-02-28T10:00:00", "43200", "RUNNING", "0"},
	})
	mem.FailNext = errors.New("store offline")

	p.tick(context.Background())

	if got := alerts.take(); len(got) != 0 {
		t.Fatalf("alerts after failed read = %v, want none", got)
	}
	cells := timerRow(t, mem, 1)
	if cells[3] != "RUNNING" || cells[4] != "0" {
		t.Fatalf("row mutated by failed tick: %v", cells)
	}
}

func TestTickSkipsInertAndDoneRows(t *testing.T) {
	t.Parallel()
	p, mem, alerts := newTestPoller(t)
	mem.Seed("timers", [][]string{
		{"broken", "not a time", "43200", "RUNNING", "0"},
		{"finished", "2026-02-28T10:00:00", "43200", "DONE", "5"},
		{"steel 1", "2026-03-01T02:00:00", "43200", "RUNNING", "0"},
	})

	p.tick(context.Background())

	got := alerts.take()
	if len(got) != 1 || got[0].Key != "steel 1" {
		t.Fatalf("alerts = %v", got)
	}
}

func TestAdvanceRechecksUnderLock(t *testing.T) {
	t.Parallel()
	p, mem, alerts := newTestPoller(t)
	mem.Seed("timers", [][]string{
		{"steel 1", "2026-03-01T03:59:00", "43200", "RUNNING", "0"},
	})
	// Simulate a command landing between snapshot and advance: the row has
	// already moved past the stage the snapshot would fire.
	if err := p.store.WriteStage(context.Background(), 1, StageFourH); err != nil {
		t.Fatalf("WriteStage: %v", err)
	}

	p.advance(context.Background(), "steel 1", svcNow)

	if got := alerts.take(); len(got) != 0 {
		t.Fatalf("stale advance alerted: %v", got)
	}
}
