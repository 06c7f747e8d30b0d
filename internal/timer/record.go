package timer

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Stage is the staged-alert position of a timer. Order matters: a persisted
// stage only ever moves forward.
type Stage int

const (
	// StageInvalid orders strictly below every defined stage, so an
	// unrecognized persisted value lets the next threshold fire (fail-open)
	// instead of silencing the timer.
	StageInvalid Stage = iota - 1
	StageNone
	StageFourH
	StageTwoH
	StageOneH
	StageThirtyM
	StageDone
)

var stageNames = map[Stage]string{
	StageNone:    "NONE",
	StageFourH:   "FOUR_H",
	StageTwoH:    "TWO_H",
	StageOneH:    "ONE_H",
	StageThirtyM: "THIRTY_M",
	StageDone:    "DONE",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return "INVALID"
}

func (s Stage) Valid() bool { return s >= StageNone && s <= StageDone }

// Cell returns the canonical persisted encoding (numeric).
func (s Stage) Cell() string {
	if !s.Valid() {
		return strconv.Itoa(int(StageNone))
	}
	return strconv.Itoa(int(s))
}

// ParseStage accepts both the numeric encoding and the legacy symbolic one.
// Anything else is StageInvalid.
func ParseStage(raw string) Stage {
	v := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(v); err == nil {
		s := Stage(n)
		if s.Valid() {
			return s
		}
		return StageInvalid
	}
	up := strings.ToUpper(v)
	for s, name := range stageNames {
		if up == name {
			return s
		}
	}
	return StageInvalid
}

const (
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
)

// Record column layout (1-based sheet columns).
const (
	ColKey = iota + 1
	ColStart
	ColDuration
	ColStatus
	ColStage
	recordWidth = 5
)

// Record is one parsed timer row.
type Record struct {
	Row      int // 1-based source row
	Key      string
	Start    time.Time
	Duration time.Duration
	Status   string
	Stage    Stage
}

func (r Record) Running() bool { return r.Status == StatusRunning }

// Deadline is the instant the countdown ends.
func (r Record) Deadline() time.Time { return r.Start.Add(r.Duration) }

func (r Record) Remaining(now time.Time) time.Duration {
	return r.Deadline().Sub(now)
}

// ParseError marks a row that cannot participate in the stage machine. Inert
// rows are skipped, never defaulted.
type ParseError struct {
	Row    int
	Column int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("timer: row %d col %d: %s", e.Row, e.Column, e.Reason)
}

// startLayouts are the two accepted timestamp encodings, interpreted as UTC.
var startLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseStart(raw string) (time.Time, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return time.Time{}, false
	}
	for _, layout := range startLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatStart renders the canonical persisted timestamp encoding.
func FormatStart(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05")
}

// NormalizeKey removes all whitespace so "강철 1" and "강철1" address the
// same timer.
func NormalizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func cell(cells []string, col int) string {
	if col < 1 || col > len(cells) {
		return ""
	}
	return cells[col-1]
}

// ParseRecord decodes one sheet row. A missing/unparseable start or duration
// makes the row inert and returns a *ParseError.
func ParseRecord(row int, cells []string) (Record, error) {
	rec := Record{Row: row, Key: strings.TrimSpace(cell(cells, ColKey))}
	if rec.Key == "" {
		return Record{}, &ParseError{Row: row, Column: ColKey, Reason: "empty key"}
	}

	start, ok := parseStart(cell(cells, ColStart))
	if !ok {
		return Record{}, &ParseError{Row: row, Column: ColStart, Reason: "bad start time " + strconv.Quote(cell(cells, ColStart))}
	}
	rec.Start = start

	secs, err := strconv.ParseInt(strings.TrimSpace(cell(cells, ColDuration)), 10, 64)
	if err != nil || secs <= 0 {
		return Record{}, &ParseError{Row: row, Column: ColDuration, Reason: "bad duration " + strconv.Quote(cell(cells, ColDuration))}
	}
	rec.Duration = time.Duration(secs) * time.Second

	rec.Status = strings.ToUpper(strings.TrimSpace(cell(cells, ColStatus)))
	rec.Stage = ParseStage(cell(cells, ColStage))
	return rec, nil
}
