package sheet

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	logx "github.com/cyberia73/steel-check/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteClient struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Client, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	c := &sqliteClient{db: db, log: log}
	if err := c.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *sqliteClient) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, string(b))
	return err
}

func (c *sqliteClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *sqliteClient) Rows(ctx context.Context, table string) ([][]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT row, col, val FROM sheet_cells WHERE tbl = ? ORDER BY row, col`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out [][]string
	for rows.Next() {
		var r, col int
		var val string
		if err := rows.Scan(&r, &col, &val); err != nil {
			return nil, err
		}
		for len(out) < r {
			out = append(out, nil)
		}
		cells := out[r-1]
		for len(cells) < col {
			cells = append(cells, "")
		}
		cells[col-1] = val
		out[r-1] = cells
	}
	return out, rows.Err()
}

func (c *sqliteClient) RowValues(ctx context.Context, table string, row int) ([]string, error) {
	if row < 1 {
		return nil, ErrBadIndex
	}
	rows, err := c.db.QueryContext(ctx,
		`SELECT col, val FROM sheet_cells WHERE tbl = ? AND row = ? ORDER BY col`, table, row)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var col int
		var val string
		if err := rows.Scan(&col, &val); err != nil {
			return nil, err
		}
		for len(out) < col {
			out = append(out, "")
		}
		out[col-1] = val
	}
	return out, rows.Err()
}

func (c *sqliteClient) UpdateCell(ctx context.Context, table string, row, col int, value string) error {
	if row < 1 || col < 1 {
		return ErrBadIndex
	}
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO sheet_cells(tbl, row, col, val) VALUES(?,?,?,?)
		 ON CONFLICT(tbl, row, col) DO UPDATE SET val = excluded.val`,
		table, row, col, value)
	return err
}

func (c *sqliteClient) AppendRow(ctx context.Context, table string, values []string) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var row int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(row), 0) + 1 FROM sheet_cells WHERE tbl = ?`, table).Scan(&row); err != nil {
		return 0, err
	}
	// Write col 1 even when values is empty so the row exists.
	if len(values) == 0 {
		values = []string{""}
	}
	for i, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sheet_cells(tbl, row, col, val) VALUES(?,?,?,?)`,
			table, row, i+1, v); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return row, nil
}

func (c *sqliteClient) DeleteRow(ctx context.Context, table string, row int) error {
	if row < 1 {
		return ErrBadIndex
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sheet_cells WHERE tbl = ? AND row = ?`, table, row); err != nil {
		return err
	}
	// Shift the tail up to keep row numbers contiguous (sheet semantics).
	// Two-step via negated values: a direct row-1 update can hit transient
	// primary-key collisions depending on visit order.
	if _, err := tx.ExecContext(ctx,
		`UPDATE sheet_cells SET row = -(row - 1) WHERE tbl = ? AND row > ?`, table, row); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sheet_cells SET row = -row WHERE tbl = ? AND row < 0`, table); err != nil {
		return err
	}
	return tx.Commit()
}
