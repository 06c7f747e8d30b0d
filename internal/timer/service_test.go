package timer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cyberia73/steel-check/internal/sheet"
	logx "github.com/cyberia73/steel-check/pkg/logx"
)

var svcNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *sheet.Memory) {
	t.Helper()
	mem := sheet.NewMemory()
	svc := NewService(NewStore(mem, "timers"), 12*time.Hour, logx.Nop())
	svc.now = func() time.Time { return svcNow }
	return svc, mem
}

func timerRow(t *testing.T, mem *sheet.Memory, row int) []string {
	t.Helper()
	cells, err := mem.RowValues(context.Background(), "timers", row)
	if err != nil {
		t.Fatalf("RowValues: %v", err)
	}
	return cells
}

func TestCreateOrQueryCreates(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	res, err := svc.CreateOrQuery(context.Background(), "steel 1")
	if err != nil {
		t.Fatalf("CreateOrQuery: %v", err)
	}
	if res.Outcome != OutcomeCreated || res.Duration != 12*time.Hour {
		t.Fatalf("res = %+v", res)
	}
	cells := timerRow(t, mem, 1)
	want := []string{"steel 1", "2026-03-01T12:00:00", "43200", "RUNNING", "0"}
	for i, w := range want {
		if cells[i] != w {
			t.Fatalf("col %d = %q, want %q (row %v)", i+1, cells[i], w, cells)
		}
	}
}

func TestCreateOrQueryReportsRemaining(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	mem.Seed("timers", [][]string{
		{"steel 1", "2026-03-01T10:00:00", "43200", "RUNNING", "0"},
	})
	res, err := svc.CreateOrQuery(context.Background(), "steel1") // whitespace-insensitive match
	if err != nil {
		t.Fatalf("CreateOrQuery: %v", err)
	}
	if res.Outcome != OutcomeRunning || res.Remaining != 10*time.Hour {
		t.Fatalf("res = %+v", res)
	}
}

func TestCreateOrQueryElapsedRunning(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	mem.Seed("timers", [][]string{
		{"steel 1", "2026-02-28T10:00:00", "43200", "RUNNING", "0"},
	})
	res, err := svc.CreateOrQuery(context.Background(), "steel 1")
	if err != nil {
		t.Fatalf("CreateOrQuery: %v", err)
	}
	if res.Outcome != OutcomeEnded {
		t.Fatalf("res = %+v, want ended", res)
	}
}

func TestCreateOrQueryRestartsDone(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	mem.Seed("timers", [][]string{
		{"steel 1", "2026-02-28T10:00:00", "43200", "DONE", "5"},
	})
	res, err := svc.CreateOrQuery(context.Background(), "steel 1")
	if err != nil {
		t.Fatalf("CreateOrQuery: %v", err)
	}
	if res.Outcome != OutcomeRestarted {
		t.Fatalf("res = %+v, want restarted", res)
	}
	cells := timerRow(t, mem, 1)
	if cells[1] != "2026-03-01T12:00:00" || cells[3] != "RUNNING" || cells[4] != "0" {
		t.Fatalf("row after restart = %v", cells)
	}
}

func TestCreateOrQueryOverwritesInertRow(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	mem.Seed("timers", [][]string{
		{"steel 1", "broken", "", "", ""},
	})
	res, err := svc.CreateOrQuery(context.Background(), "steel 1")
	if err != nil {
		t.Fatalf("CreateOrQuery: %v", err)
	}
	if res.Outcome != OutcomeCreated {
		t.Fatalf("res = %+v, want created", res)
	}
	cells := timerRow(t, mem, 1)
	if cells[1] != "2026-03-01T12:00:00" || cells[3] != "RUNNING" {
		t.Fatalf("row after overwrite = %v", cells)
	}
	// no duplicate row appended
	rows, _ := mem.Rows(context.Background(), "timers")
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
}

func TestForceComplete(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	mem.Seed("timers", [][]string{
		{"steel 1", "2026-03-01T10:00:00", "43200", "RUNNING", "2"},
	})

	if err := svc.ForceComplete(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing key err = %v, want ErrNotFound", err)
	}

	if err := svc.ForceComplete(context.Background(), "steel 1"); err != nil {
		t.Fatalf("ForceComplete: %v", err)
	}
	cells := timerRow(t, mem, 1)
	if cells[3] != "DONE" || cells[4] != "5" {
		t.Fatalf("row after complete = %v", cells)
	}

	if err := svc.ForceComplete(context.Background(), "steel 1"); !errors.Is(err, ErrAlreadyDone) {
		t.Fatalf("second complete err = %v, want ErrAlreadyDone", err)
	}
}

func TestForceCompleteRefusesInertRow(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	mem.Seed("timers", [][]string{
		{"steel 1", "not a time", "", "", ""},
	})

	if err := svc.ForceComplete(context.Background(), "steel 1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("inert row err = %v, want ErrNotFound", err)
	}
	cells := timerRow(t, mem, 1)
	want := []string{"steel 1", "not a time", "", "", ""}
	for i, w := range want {
		if cells[i] != w {
			t.Fatalf("col %d = %q, want %q (row mutated: %v)", i+1, cells[i], w, cells)
		}
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()
	svc, mem := newTestService(t)
	mem.Seed("timers", [][]string{
		{"steel 1", "2026-03-01T10:00:00", "43200", "RUNNING", "0"},
		{"steel 2", "2026-03-01T10:00:00", "43200", "RUNNING", "0"},
	})
	if err := svc.Remove(context.Background(), "steel 1"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	rows, _ := mem.Rows(context.Background(), "timers")
	if len(rows) != 1 || rows[0][0] != "steel 2" {
		t.Fatalf("rows after remove = %v", rows)
	}
	if err := svc.Remove(context.Background(), "steel 1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second remove err = %v, want ErrNotFound", err)
	}
}

func TestFormatRemaining(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   time.Duration
		want string
	}{
		{11*time.Hour + 59*time.Minute + 3*time.Second, "11h 59m 3s"},
		{30 * time.Minute, "0h 30m 0s"},
		{0, "0h 0m 0s"},
		{-time.Minute, "0h 0m 0s"},
	}
	for _, tc := range tests {
		if got := FormatRemaining(tc.in); got != tc.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
