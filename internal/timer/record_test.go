package timer

import (
	"errors"
	"testing"
	"time"
)

func TestParseStage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want Stage
	}{
		{"0", StageNone},
		{"1", StageFourH},
		{"4", StageThirtyM},
		{"5", StageDone},
		{" 3 ", StageOneH},
		{"NONE", StageNone},
		{"four_h", StageFourH},
		{"Thirty_M", StageThirtyM},
		{"DONE", StageDone},
		{"", StageInvalid},
		{"GARBAGE", StageInvalid},
		{"6", StageInvalid},
		{"-1", StageInvalid},
	}
	for _, tc := range tests {
		if got := ParseStage(tc.in); got != tc.want {
			t.Errorf("ParseStage(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestStageCellRoundTrip(t *testing.T) {
	t.Parallel()
	for s := StageNone; s <= StageDone; s++ {
		if got := ParseStage(s.Cell()); got != s {
			t.Errorf("ParseStage(%v.Cell()) = %v", s, got)
		}
	}
	if StageInvalid.Cell() != "0" {
		t.Errorf("invalid stage cell = %q, want 0", StageInvalid.Cell())
	}
}

func TestParseStartFormats(t *testing.T) {
	t.Parallel()
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, in := range []string{"2026-01-02T03:04:05", "2026-01-02 03:04:05", "  2026-01-02T03:04:05  "} {
		got, ok := parseStart(in)
		if !ok || !got.Equal(want) {
			t.Errorf("parseStart(%q) = (%v, %v)", in, got, ok)
		}
	}
	for _, in := range []string{"", "tomorrow", "2026-01-02", "02/01/2026 03:04:05"} {
		if _, ok := parseStart(in); ok {
			t.Errorf("parseStart(%q) accepted", in)
		}
	}
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()
	if NormalizeKey("강철 1") != NormalizeKey("강철1") {
		t.Fatal("keys differing only in whitespace must match")
	}
	if NormalizeKey(" steel\t7 \n") != "steel7" {
		t.Fatalf("got %q", NormalizeKey(" steel\t7 \n"))
	}
}

func TestParseRecord(t *testing.T) {
	t.Parallel()
	good := []string{"steel 1", "2026-01-02T03:04:05", "43200", "running", "1"}
	rec, err := ParseRecord(3, good)
	if err != nil {
		t.Fatalf("ParseRecord: %v", err)
	}
	if rec.Row != 3 || rec.Key != "steel 1" || rec.Duration != 12*time.Hour ||
		rec.Status != StatusRunning || rec.Stage != StageFourH {
		t.Fatalf("rec = %+v", rec)
	}
	if !rec.Deadline().Equal(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)) {
		t.Fatalf("deadline = %v", rec.Deadline())
	}

	inert := [][]string{
		{},
		{"steel 1"},
		{"steel 1", "not a time", "43200", "RUNNING", "0"},
		{"steel 1", "2026-01-02T03:04:05", "", "RUNNING", "0"},
		{"steel 1", "2026-01-02T03:04:05", "twelve", "RUNNING", "0"},
		{"steel 1", "2026-01-02T03:04:05", "0", "RUNNING", "0"},
		{"steel 1", "2026-01-02T03:04:05", "-5", "RUNNING", "0"},
	}
	for i, cells := range inert {
		_, err := ParseRecord(1, cells)
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Errorf("case %d: err = %v, want ParseError", i, err)
		}
	}

	// garbage stage is not inert, it parses to the fail-open invalid stage
	rec, err = ParseRecord(1, []string{"steel 1", "2026-01-02T03:04:05", "43200", "RUNNING", "GARBAGE"})
	if err != nil {
		t.Fatalf("garbage stage rejected: %v", err)
	}
	if rec.Stage != StageInvalid {
		t.Fatalf("stage = %v, want StageInvalid", rec.Stage)
	}
}
