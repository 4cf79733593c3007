package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	catalogv1 "github.com/muhammadchandra19/tickstore/internal/domain/catalog/v1"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS dtf_files (
    path TEXT PRIMARY KEY,
    key TEXT NOT NULL,
    symbol TEXT NOT NULL,
    symbol_code INTEGER NOT NULL,
    records INTEGER NOT NULL,
    min_ts INTEGER NOT NULL,
    max_ts INTEGER NOT NULL,
    blocks INTEGER NOT NULL,
    compressed INTEGER NOT NULL DEFAULT 0,
    size INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dtf_files_symbol_range ON dtf_files(symbol, min_ts, max_ts);
`

const selectColumns = `SELECT path, key, symbol, symbol_code, records, min_ts, max_ts, blocks, compressed, size, created_at FROM dtf_files`

// Catalog is a SQLite-backed file catalog.
type Catalog struct {
	db *sql.DB
}

var _ catalogv1.Catalog = (*Catalog)(nil)

// New opens (and creates if needed) the catalog database at path and applies
// the schema. Use ":memory:" for a throwaway catalog.
func New(ctx context.Context, path string) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("catalog path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create catalog directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one connection: SQLite has a single writer and :memory: is per connection
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Ping checks the database handle.
func (c *Catalog) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Upsert inserts entry or replaces the entry with the same path.
func (c *Catalog) Upsert(ctx context.Context, entry catalogv1.Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO dtf_files (path, key, symbol, symbol_code, records, min_ts, max_ts, blocks, compressed, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			key = excluded.key,
			symbol = excluded.symbol,
			symbol_code = excluded.symbol_code,
			records = excluded.records,
			min_ts = excluded.min_ts,
			max_ts = excluded.max_ts,
			blocks = excluded.blocks,
			compressed = excluded.compressed,
			size = excluded.size`,
		entry.Path, entry.Key, entry.Symbol, int64(entry.SymbolCode), int64(entry.Records),
		int64(entry.MinTs), int64(entry.MaxTs), int64(entry.Blocks), entry.Compressed, entry.Size,
		entry.CreatedAt.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog entry %s: %w", entry.Path, err)
	}
	return nil
}

// Get returns the entry for path.
func (c *Catalog) Get(ctx context.Context, path string) (*catalogv1.Entry, error) {
	entry, err := scanEntry(c.db.QueryRowContext(ctx, selectColumns+` WHERE path = ?`, path))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", catalogv1.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to get catalog entry %s: %w", path, err)
	}
	return entry, nil
}

// FindOverlapping returns the non-empty files of symbol that may hold records
// in [from, to], ordered by their first timestamp.
func (c *Catalog) FindOverlapping(ctx context.Context, symbol string, from, to uint64) ([]catalogv1.Entry, error) {
	if from > to {
		return nil, nil
	}

	rows, err := c.db.QueryContext(ctx,
		selectColumns+` WHERE symbol = ? AND records > 0 AND min_ts <= ? AND max_ts >= ? ORDER BY min_ts, path`,
		symbol, int64(to), int64(from),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var entries []catalogv1.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog rows: %w", err)
	}
	return entries, nil
}

// Symbols lists every catalogued symbol in name order.
func (c *Catalog) Symbols(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM dtf_files ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan catalog symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog rows: %w", err)
	}
	return symbols, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*catalogv1.Entry, error) {
	var (
		e                                         catalogv1.Entry
		code, records, minTs, maxTs, blocks, made int64
	)
	if err := row.Scan(&e.Path, &e.Key, &e.Symbol, &code, &records, &minTs, &maxTs, &blocks, &e.Compressed, &e.Size, &made); err != nil {
		return nil, err
	}
	e.SymbolCode = uint32(code)
	e.Records = uint64(records)
	e.MinTs = uint64(minTs)
	e.MaxTs = uint64(maxTs)
	e.Blocks = uint32(blocks)
	e.CreatedAt = time.UnixMicro(made).UTC()
	return &e, nil
}
