package registry

import (
	"context"
	"reflect"
	"testing"

	"github.com/cyberia73/steel-check/internal/sheet"
	logx "github.com/cyberia73/steel-check/pkg/logx"
)

func newTestRegistry(t *testing.T) (*Registry, *sheet.Memory) {
	t.Helper()
	mem := sheet.NewMemory()
	return New(mem, "mentions", "steel", logx.Nop()), mem
}

func TestAddCreatesRowWithLabel(t *testing.T) {
	t.Parallel()
	r, mem := newTestRegistry(t)
	added, err := r.Add(context.Background(), []string{"100", "200"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !reflect.DeepEqual(added, []string{"100", "200"}) {
		t.Fatalf("added = %v", added)
	}
	cells, _ := mem.RowValues(context.Background(), "mentions", 1)
	if !reflect.DeepEqual(cells, []string{"steel", "100", "200"}) {
		t.Fatalf("row = %v", cells)
	}
}

func TestAddSkipsDuplicates(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t)
	if _, err := r.Add(context.Background(), []string{"100"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	added, err := r.Add(context.Background(), []string{"100", "100", "200"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !reflect.DeepEqual(added, []string{"200"}) {
		t.Fatalf("added = %v", added)
	}
}

func TestRemoveBlanksSlotAndAddReuses(t *testing.T) {
	t.Parallel()
	r, mem := newTestRegistry(t)
	ctx := context.Background()
	if _, err := r.Add(ctx, []string{"100", "200", "300"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	removed, err := r.Remove(ctx, []string{"200", "999"})
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !reflect.DeepEqual(removed, []string{"200"}) {
		t.Fatalf("removed = %v", removed)
	}
	got, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"100", "300"}) {
		t.Fatalf("list = %v", got)
	}

	// the freed middle slot is reused, order reflects slot position
	if _, err := r.Add(ctx, []string{"400"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	cells, _ := mem.RowValues(ctx, "mentions", 1)
	if !reflect.DeepEqual(cells, []string{"steel", "100", "400", "300"}) {
		t.Fatalf("row = %v", cells)
	}
}

func TestListEmptyTable(t *testing.T) {
	t.Parallel()
	r, _ := newTestRegistry(t)
	got, err := r.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("list = %v, want empty", got)
	}
}
