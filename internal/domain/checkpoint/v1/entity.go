package checkpointv1

import (
	"time"

	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
	orderbookv1 "github.com/muhammadchandra19/tickstore/internal/domain/orderbook/v1"
)

// Checkpoint is the state of a replay session after its last applied record.
// Resuming applies only records with a sequence above Book.Sequence.
type Checkpoint struct {
	Symbol    string               `json:"symbol"`
	Interval  string               `json:"interval"`
	Book      orderbookv1.Snapshot `json:"book"`
	Candle    candlev1.Progress    `json:"candle"`
	Records   uint64               `json:"records"`
	Gaps      uint64               `json:"gaps"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Key identifies the checkpoint of one symbol at one interval.
func Key(symbol, interval string) string {
	return symbol + ":" + interval
}
