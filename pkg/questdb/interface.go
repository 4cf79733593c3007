package questdb

import (
	"context"

	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=interface.go -destination=mock/interface_mock.go -package=mock

// RowsInterface is the subset of pgx.Rows the repositories use.
type RowsInterface interface {
	Next() bool
	Scan(dest ...any) error
	Close()
	Err() error
}

// RowsWrapper adapts pgx.Rows to RowsInterface.
type RowsWrapper struct {
	rows pgx.Rows
}

// NewRowsWrapper wraps rows.
func NewRowsWrapper(rows pgx.Rows) RowsInterface {
	return &RowsWrapper{rows: rows}
}

// Next advances to the next row.
func (r *RowsWrapper) Next() bool {
	return r.rows.Next()
}

// Scan reads the current row into dest.
func (r *RowsWrapper) Scan(dest ...any) error {
	return r.rows.Scan(dest...)
}

// Close releases the rows.
func (r *RowsWrapper) Close() {
	r.rows.Close()
}

// Err returns the error that stopped iteration.
func (r *RowsWrapper) Err() error {
	return r.rows.Err()
}

// QuestDBClient is the QuestDB access used by the bar repository. QuestDB is
// reached over its PostgreSQL wire endpoint.
type QuestDBClient interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (RowsInterface, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row

	// CopyFrom bulk-inserts rows.
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)

	Ping(ctx context.Context) error
	Close()
}
