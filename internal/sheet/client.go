package sheet

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "github.com/cyberia73/steel-check/pkg/logx"
)

// Client is the tabular store boundary. Rows and columns are 1-based (sheet
// convention). Operations are point reads/writes: they may fail, but are never
// partially applied.
type Client interface {
	// Rows returns a bulk snapshot of every row in the table, in row order.
	// Rows are padded with "" up to their widest written column.
	Rows(ctx context.Context, table string) ([][]string, error)
	RowValues(ctx context.Context, table string, row int) ([]string, error)
	UpdateCell(ctx context.Context, table string, row, col int, value string) error
	// AppendRow writes values as a new row after the current last row and
	// returns its 1-based index.
	AppendRow(ctx context.Context, table string, values []string) (int, error)
	// DeleteRow removes the row and shifts subsequent rows up by one.
	DeleteRow(ctx context.Context, table string, row int) error
	Close() error
}

var ErrBadIndex = errors.New("sheet: row/col index must be >= 1")

type Config struct {
	Driver      string // "sqlite" (default) or "memory"
	Path        string
	BusyTimeout time.Duration
}

// Open initializes the configured backend.
func Open(cfg Config, log logx.Logger) (Client, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, errors.New("unknown sheet driver: " + cfg.Driver)
	}
}
