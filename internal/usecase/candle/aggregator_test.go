package candle

import (
	"testing"

	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
	"github.com/muhammadchandra19/tickstore/pkg/dtf"
	"github.com/muhammadchandra19/tickstore/pkg/interval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trade(ts uint64, price, size float64) dtf.Update {
	return dtf.Update{Timestamp: ts, Sequence: ts + 1, Kind: dtf.KindTrade, Side: dtf.SideBid, Price: price, Size: size}
}

func book(ts uint64, price, size float64) dtf.Update {
	return dtf.Update{Timestamp: ts, Sequence: ts + 1, Kind: dtf.KindBookAdd, Side: dtf.SideAsk, Price: price, Size: size}
}

func TestNewAggregator(t *testing.T) {
	_, err := NewAggregator(0)
	assert.ErrorIs(t, err, candlev1.ErrInvalidWindow)

	agg, err := NewAggregatorForInterval(interval.Interval1m)
	require.NoError(t, err)
	assert.Equal(t, uint64(60_000_000), agg.Window())
}

func TestAggregator_Apply(t *testing.T) {
	testCases := []struct {
		name     string
		window   uint64
		updates  []dtf.Update
		expected []candlev1.Bar
	}{
		{
			name:   "single window ohlc",
			window: 30,
			updates: []dtf.Update{
				trade(0, 10, 1),
				trade(10, 12, 2),
				trade(20, 9, 1),
			},
			expected: []candlev1.Bar{
				{WindowStart: 0, Open: 10, High: 12, Low: 9, Close: 9, Volume: 4, TradeCount: 3},
			},
		},
		{
			name:   "bucket boundary",
			window: 30,
			updates: []dtf.Update{
				trade(29, 10, 1),
				trade(30, 11, 1),
			},
			expected: []candlev1.Bar{
				{WindowStart: 0, Open: 10, High: 10, Low: 10, Close: 10, Volume: 1, TradeCount: 1},
				{WindowStart: 30, Open: 11, High: 11, Low: 11, Close: 11, Volume: 1, TradeCount: 1},
			},
		},
		{
			name:   "book events are ignored",
			window: 30,
			updates: []dtf.Update{
				book(1, 500, 1),
				trade(2, 10, 1),
				book(3, 1, 1),
			},
			expected: []candlev1.Bar{
				{WindowStart: 0, Open: 10, High: 10, Low: 10, Close: 10, Volume: 1, TradeCount: 1},
			},
		},
		{
			name:   "empty windows are not synthesized",
			window: 10,
			updates: []dtf.Update{
				trade(5, 1, 1),
				trade(45, 2, 1),
			},
			expected: []candlev1.Bar{
				{WindowStart: 0, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1, TradeCount: 1},
				{WindowStart: 40, Open: 2, High: 2, Low: 2, Close: 2, Volume: 1, TradeCount: 1},
			},
		},
		{
			name:     "no trades",
			window:   10,
			updates:  []dtf.Update{book(1, 1, 1)},
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bars, err := Aggregate(tc.window, tc.updates)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, bars)
		})
	}
}

func TestAggregator_ClosesOnNewWindow(t *testing.T) {
	agg, err := NewAggregator(30)
	require.NoError(t, err)

	bar, err := agg.Apply(trade(0, 10, 1))
	require.NoError(t, err)
	assert.Nil(t, bar)

	current, ok := agg.Current()
	require.True(t, ok)
	assert.Equal(t, uint64(0), current.WindowStart)

	bar, err = agg.Apply(trade(31, 12, 1))
	require.NoError(t, err)
	require.NotNil(t, bar)
	assert.Equal(t, uint64(0), bar.WindowStart)

	bar, ok = agg.Flush()
	require.True(t, ok)
	assert.Equal(t, uint64(30), bar.WindowStart)

	_, ok = agg.Flush()
	assert.False(t, ok)
	_, ok = agg.Current()
	assert.False(t, ok)
}

func TestAggregator_LateRecord(t *testing.T) {
	agg, err := NewAggregator(30)
	require.NoError(t, err)

	_, err = agg.Apply(trade(5, 10, 1))
	require.NoError(t, err)
	_, err = agg.Apply(trade(65, 11, 1))
	require.NoError(t, err)

	before, _ := agg.Current()
	_, err = agg.Apply(trade(45, 99, 1))
	assert.ErrorIs(t, err, candlev1.ErrLateRecord)
	after, _ := agg.Current()
	assert.Equal(t, before, after, "late trade leaves the open bar untouched")

	flushed, ok := agg.Flush()
	require.True(t, ok)
	assert.Equal(t, uint64(60), flushed.WindowStart)

	_, err = agg.Apply(trade(70, 12, 1))
	assert.ErrorIs(t, err, candlev1.ErrLateRecord, "flushed window 60 stays closed")
	_, ok = agg.Current()
	assert.False(t, ok)

	_, err = agg.Apply(trade(90, 12, 1))
	require.NoError(t, err)
	open, ok := agg.Current()
	require.True(t, ok, "a later window opens a new bar after flush")
	assert.Equal(t, uint64(90), open.WindowStart)
}

func TestAggregator_InvalidTrade(t *testing.T) {
	agg, err := NewAggregator(30)
	require.NoError(t, err)

	_, err = agg.Apply(dtf.Update{Timestamp: 1, Kind: dtf.KindTrade, Side: dtf.SideAsk, Price: -1, Size: 1})
	assert.ErrorIs(t, err, dtf.ErrInvalidRecord)
	_, ok := agg.Current()
	assert.False(t, ok)
}

func TestAggregator_ProgressRestore(t *testing.T) {
	updates := []dtf.Update{
		trade(1, 10, 1),
		trade(31, 11, 1),
		trade(40, 12, 2),
		trade(61, 9, 1),
		trade(75, 8, 1),
	}

	whole, err := Aggregate(30, updates)
	require.NoError(t, err)

	first, err := NewAggregator(30)
	require.NoError(t, err)
	var bars []candlev1.Bar
	for _, u := range updates[:3] {
		bar, err := first.Apply(u)
		require.NoError(t, err)
		if bar != nil {
			bars = append(bars, *bar)
		}
	}

	resumed, err := NewAggregator(30)
	require.NoError(t, err)
	resumed.Restore(first.Progress())

	_, err = resumed.Apply(trade(5, 1, 1))
	assert.ErrorIs(t, err, candlev1.ErrLateRecord, "restored aggregator remembers closed windows")

	for _, u := range updates[3:] {
		bar, err := resumed.Apply(u)
		require.NoError(t, err)
		if bar != nil {
			bars = append(bars, *bar)
		}
	}
	bar, ok := resumed.Flush()
	require.True(t, ok)
	bars = append(bars, *bar)

	assert.Equal(t, whole, bars)
}
