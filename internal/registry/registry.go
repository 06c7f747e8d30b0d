// Package registry maintains the alert recipient list in a single row of the
// mentions table: slot 0 (column 1) holds the group label, the remaining
// slots hold recipient identifiers in insertion order. Removing a recipient
// blanks its slot; the next add reuses the first free slot, so the row does
// not grow without bound under churn.
package registry

import (
	"context"
	"strings"
	"sync"

	"github.com/cyberia73/steel-check/internal/sheet"
	logx "github.com/cyberia73/steel-check/pkg/logx"
)

const row = 1

type Registry struct {
	client sheet.Client
	table  string
	label  string
	log    logx.Logger

	// mu serializes the read-modify-write cycles of Add/Remove.
	mu sync.Mutex
}

func New(client sheet.Client, table, label string, log logx.Logger) *Registry {
	if table == "" {
		table = "mentions"
	}
	if label == "" {
		label = "steel"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{client: client, table: table, label: label, log: log}
}

// List returns the recipients in slot order. The label slot is excluded.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	cells, err := r.client.RowValues(ctx, r.table, row)
	if err != nil {
		return nil, err
	}
	var out []string
	for i, v := range cells {
		if i == 0 {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// Add inserts each id into the first free slot and reports the ones actually
// added. Duplicates (already present or repeated in the input) are skipped.
func (r *Registry) Add(ctx context.Context, ids []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cells, err := r.ensureRow(ctx)
	if err != nil {
		return nil, err
	}

	present := make(map[string]struct{})
	for _, v := range cells[1:] {
		if v = strings.TrimSpace(v); v != "" {
			present[v] = struct{}{}
		}
	}

	var added []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := present[id]; dup {
			continue
		}
		col := freeSlot(cells)
		for len(cells) < col {
			cells = append(cells, "")
		}
		cells[col-1] = id
		if err := r.client.UpdateCell(ctx, r.table, row, col, id); err != nil {
			return added, err
		}
		present[id] = struct{}{}
		added = append(added, id)
	}
	if len(added) > 0 {
		r.log.Info("recipients added", logx.Int("count", len(added)))
	}
	return added, nil
}

// Remove blanks the slot of each id present and reports the ones actually
// removed.
func (r *Registry) Remove(ctx context.Context, ids []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cells, err := r.client.RowValues(ctx, r.table, row)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		for i := 1; i < len(cells); i++ {
			if strings.TrimSpace(cells[i]) != id {
				continue
			}
			if err := r.client.UpdateCell(ctx, r.table, row, i+1, ""); err != nil {
				return removed, err
			}
			cells[i] = ""
			removed = append(removed, id)
			break
		}
	}
	if len(removed) > 0 {
		r.log.Info("recipients removed", logx.Int("count", len(removed)))
	}
	return removed, nil
}

// ensureRow reads the registry row, creating it with the label slot when the
// table is still empty.
func (r *Registry) ensureRow(ctx context.Context) ([]string, error) {
	cells, err := r.client.RowValues(ctx, r.table, row)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		if _, err := r.client.AppendRow(ctx, r.table, []string{r.label}); err != nil {
			return nil, err
		}
		return []string{r.label}, nil
	}
	if strings.TrimSpace(cells[0]) == "" {
		if err := r.client.UpdateCell(ctx, r.table, row, 1, r.label); err != nil {
			return nil, err
		}
		cells[0] = r.label
	}
	return cells, nil
}

// freeSlot returns the 1-based column of the first empty slot after the
// label, or the next column past the end.
func freeSlot(cells []string) int {
	for i := 1; i < len(cells); i++ {
		if strings.TrimSpace(cells[i]) == "" {
			return i + 1
		}
	}
	if len(cells) < 2 {
		return 2
	}
	return len(cells) + 1
}
