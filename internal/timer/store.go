package timer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cyberia73/steel-check/internal/sheet"
)

var ErrNotFound = errors.New("timer: not found")

// Store adapts the raw sheet client to record-level operations on the timer
// table. It holds no state beyond the table name; every call goes to the
// store.
type Store struct {
	client sheet.Client
	table  string
}

func NewStore(client sheet.Client, table string) *Store {
	if table == "" {
		table = "timers"
	}
	return &Store{client: client, table: table}
}

// FindRow locates the first row whose key matches after whitespace
// normalization. Duplicate keys are not cleaned up here; first match wins.
func (s *Store) FindRow(ctx context.Context, key string) (int, error) {
	want := NormalizeKey(key)
	rows, err := s.client.Rows(ctx, s.table)
	if err != nil {
		return 0, fmt.Errorf("timer: find %q: %w", key, err)
	}
	for i, cells := range rows {
		if NormalizeKey(cell(cells, ColKey)) == want {
			return i + 1, nil
		}
	}
	return 0, ErrNotFound
}

func (s *Store) LoadRecord(ctx context.Context, row int) (Record, error) {
	cells, err := s.client.RowValues(ctx, s.table, row)
	if err != nil {
		return Record{}, fmt.Errorf("timer: load row %d: %w", row, err)
	}
	return ParseRecord(row, cells)
}

// CreateRecord appends a fresh RUNNING record starting now.
func (s *Store) CreateRecord(ctx context.Context, key string, d time.Duration, now time.Time) (int, error) {
	row, err := s.client.AppendRow(ctx, s.table, runCells(key, d, now))
	if err != nil {
		return 0, fmt.Errorf("timer: create %q: %w", key, err)
	}
	return row, nil
}

// RestartRecord rewrites an existing row as a fresh run at stage NONE.
func (s *Store) RestartRecord(ctx context.Context, row int, key string, d time.Duration, now time.Time) error {
	for col, v := range runCells(key, d, now) {
		if err := s.client.UpdateCell(ctx, s.table, row, col+1, v); err != nil {
			return fmt.Errorf("timer: restart row %d: %w", row, err)
		}
	}
	return nil
}

func runCells(key string, d time.Duration, now time.Time) []string {
	cells := make([]string, recordWidth)
	cells[ColKey-1] = key
	cells[ColStart-1] = FormatStart(now)
	cells[ColDuration-1] = strconv.FormatInt(int64(d/time.Second), 10)
	cells[ColStatus-1] = StatusRunning
	cells[ColStage-1] = StageNone.Cell()
	return cells
}

func (s *Store) WriteStage(ctx context.Context, row int, st Stage) error {
	if err := s.client.UpdateCell(ctx, s.table, row, ColStage, st.Cell()); err != nil {
		return fmt.Errorf("timer: write stage row %d: %w", row, err)
	}
	return nil
}

// MarkDone flips both status and stage; a persisted DONE status always pairs
// with a DONE stage.
func (s *Store) MarkDone(ctx context.Context, row int) error {
	if err := s.client.UpdateCell(ctx, s.table, row, ColStatus, StatusDone); err != nil {
		return fmt.Errorf("timer: mark done row %d: %w", row, err)
	}
	if err := s.client.UpdateCell(ctx, s.table, row, ColStage, StageDone.Cell()); err != nil {
		return fmt.Errorf("timer: mark done row %d: %w", row, err)
	}
	return nil
}

// ReadAllRows is the one bulk snapshot a poll tick works from.
func (s *Store) ReadAllRows(ctx context.Context) ([][]string, error) {
	rows, err := s.client.Rows(ctx, s.table)
	if err != nil {
		return nil, fmt.Errorf("timer: read all: %w", err)
	}
	return rows, nil
}

// DeleteRow hard-deletes a row. Only the explicit remove command uses it.
func (s *Store) DeleteRow(ctx context.Context, row int) error {
	if err := s.client.DeleteRow(ctx, s.table, row); err != nil {
		return fmt.Errorf("timer: delete row %d: %w", row, err)
	}
	return nil
}
