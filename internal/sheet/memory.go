package sheet

import (
	"context"
	"sync"
)

// Memory is an in-process Client. It backs the "memory" driver (dev runs,
// nothing survives a restart) and doubles as the test fake across packages.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][][]string

	// FailNext, when set, makes the next call return that error. Test hook.
	FailNext error
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string][][]string)}
}

func (m *Memory) takeErr() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

func (m *Memory) Rows(ctx context.Context, table string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	src := m.tables[table]
	out := make([][]string, len(src))
	for i, r := range src {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (m *Memory) RowValues(ctx context.Context, table string, row int) ([]string, error) {
	if row < 1 {
		return nil, ErrBadIndex
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return nil, err
	}
	src := m.tables[table]
	if row > len(src) {
		return nil, nil
	}
	return append([]string(nil), src[row-1]...), nil
}

func (m *Memory) UpdateCell(ctx context.Context, table string, row, col int, value string) error {
	if row < 1 || col < 1 {
		return ErrBadIndex
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	t := m.tables[table]
	for len(t) < row {
		t = append(t, nil)
	}
	cells := t[row-1]
	for len(cells) < col {
		cells = append(cells, "")
	}
	cells[col-1] = value
	t[row-1] = cells
	m.tables[table] = t
	return nil
}

func (m *Memory) AppendRow(ctx context.Context, table string, values []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		values = []string{""}
	}
	m.tables[table] = append(m.tables[table], append([]string(nil), values...))
	return len(m.tables[table]), nil
}

func (m *Memory) DeleteRow(ctx context.Context, table string, row int) error {
	if row < 1 {
		return ErrBadIndex
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeErr(); err != nil {
		return err
	}
	t := m.tables[table]
	if row > len(t) {
		return nil
	}
	m.tables[table] = append(t[:row-1], t[row:]...)
	return nil
}

func (m *Memory) Close() error { return nil }

// Seed replaces a table's contents. Test helper.
func (m *Memory) Seed(table string, rows [][]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([][]string, len(rows))
	for i, r := range rows {
		cp[i] = append([]string(nil), r...)
	}
	m.tables[table] = cp
}
