package candlev1

import (
	"errors"
	"time"
)

var (
	// ErrLateRecord is returned for a trade whose window was already closed.
	ErrLateRecord = errors.New("late record")
	// ErrInvalidWindow is returned for a zero window or volume threshold.
	ErrInvalidWindow = errors.New("invalid window")
)

// Bar is one OHLCV candle. WindowStart is in record timestamp units.
type Bar struct {
	WindowStart uint64  `json:"window_start"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      float64 `json:"volume"`
	TradeCount  uint64  `json:"trade_count"`
}

// NewBar opens a bar with a single trade.
func NewBar(windowStart uint64, price, size float64) Bar {
	return Bar{
		WindowStart: windowStart,
		Open:        price,
		High:        price,
		Low:         price,
		Close:       price,
		Volume:      size,
		TradeCount:  1,
	}
}

// Extend folds one more trade into the bar.
func (b *Bar) Extend(price, size float64) {
	b.High = max(b.High, price)
	b.Low = min(b.Low, price)
	b.Close = price
	b.Volume += size
	b.TradeCount++
}

// Merge folds the later bar next into b. b keeps its window start and open.
func (b *Bar) Merge(next Bar) {
	b.High = max(b.High, next.High)
	b.Low = min(b.Low, next.Low)
	b.Close = next.Close
	b.Volume += next.Volume
	b.TradeCount += next.TradeCount
}

// Flat returns an empty bar at windowStart carrying b's close.
func (b Bar) Flat(windowStart uint64) Bar {
	return Bar{
		WindowStart: windowStart,
		Open:        b.Close,
		High:        b.Close,
		Low:         b.Close,
		Close:       b.Close,
	}
}

// BarRecord is a bar stored for a symbol and interval.
type BarRecord struct {
	Timestamp time.Time
	Symbol    string
	Interval  string
	Bar
}

// Filter represents the filter criteria for stored bars.
type Filter struct {
	Symbol   string
	Interval string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// Progress is the resumable state of a time bar aggregator.
type Progress struct {
	Open       *Bar   `json:"open,omitempty"`
	Closed     bool   `json:"closed"`
	LastClosed uint64 `json:"last_closed"`
}
