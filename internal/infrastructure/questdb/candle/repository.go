package candle

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/muhammadchandra19/tickstore/pkg/questdb"
)

// Table is the QuestDB table bars are written to.
const Table = "bars"

var columns = []string{"timestamp", "symbol", "interval", "open", "high", "low", "close", "volume", "trade_count"}

const selectColumns = "SELECT timestamp, symbol, interval, open, high, low, close, volume, trade_count FROM bars"

// Repository stores bars in QuestDB.
type Repository struct {
	client questdb.QuestDBClient
	logger *logger.Logger
}

var _ candlev1.Repository = (*Repository)(nil)

// NewRepository creates a new bar repository.
func NewRepository(client questdb.QuestDBClient, logger *logger.Logger) *Repository {
	return &Repository{client: client, logger: logger}
}

// Store stores a single bar.
func (r *Repository) Store(ctx context.Context, bar *candlev1.BarRecord) error {
	query := `INSERT INTO bars (timestamp, symbol, interval, open, high, low, close, volume, trade_count)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	err := r.client.Exec(ctx, query,
		bar.Timestamp, bar.Symbol, bar.Interval, bar.Open, bar.High,
		bar.Low, bar.Close, bar.Volume, int64(bar.TradeCount))
	if err != nil {
		return fmt.Errorf("failed to store bar: %w", err)
	}
	return nil
}

// StoreBatch stores bars with the COPY protocol.
func (r *Repository) StoreBatch(ctx context.Context, bars []*candlev1.BarRecord) error {
	if len(bars) == 0 {
		return nil
	}

	count, err := r.client.CopyFrom(
		ctx,
		pgx.Identifier{Table},
		columns,
		pgx.CopyFromSlice(len(bars), func(i int) ([]any, error) {
			bar := bars[i]
			return []any{
				bar.Timestamp,
				bar.Symbol,
				bar.Interval,
				bar.Open,
				bar.High,
				bar.Low,
				bar.Close,
				bar.Volume,
				int64(bar.TradeCount),
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy bar batch: %w", err)
	}

	r.logger.DebugContext(ctx, "bars copied", logger.NewField("count", count))
	return nil
}

// GetByFilter returns stored bars matching filter, newest first.
func (r *Repository) GetByFilter(ctx context.Context, filter candlev1.Filter) ([]*candlev1.BarRecord, error) {
	query := selectColumns + " WHERE 1=1"
	args := []interface{}{}
	argIndex := 1

	if filter.Symbol != "" {
		query += fmt.Sprintf(" AND symbol = $%d", argIndex)
		args = append(args, filter.Symbol)
		argIndex++
	}
	if filter.Interval != "" {
		query += fmt.Sprintf(" AND interval = $%d", argIndex)
		args = append(args, filter.Interval)
		argIndex++
	}
	if filter.From != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIndex)
		args = append(args, *filter.From)
		argIndex++
	}
	if filter.To != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argIndex)
		args = append(args, *filter.To)
		argIndex++
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	rows, err := r.client.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []*candlev1.BarRecord
	for rows.Next() {
		bar, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return bars, nil
}

// GetLatest returns the most recent bar for symbol and interval, nil if
// there is none.
func (r *Repository) GetLatest(ctx context.Context, symbol, interval string) (*candlev1.BarRecord, error) {
	query := selectColumns + " WHERE symbol = $1 AND interval = $2 ORDER BY timestamp DESC LIMIT 1"

	bar, err := scan(r.client.QueryRow(ctx, query, symbol, interval))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest bar: %w", err)
	}
	return bar, nil
}

func scan(row pgx.Row) (*candlev1.BarRecord, error) {
	var (
		bar        candlev1.BarRecord
		tradeCount int64
	)
	err := row.Scan(&bar.Timestamp, &bar.Symbol, &bar.Interval, &bar.Open,
		&bar.High, &bar.Low, &bar.Close, &bar.Volume, &tradeCount)
	if err != nil {
		return nil, err
	}
	bar.TradeCount = uint64(tradeCount)
	bar.WindowStart = uint64(bar.Timestamp.UnixMicro())
	return &bar, nil
}
