package candle

import candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"

// Range is a closed range of window starts.
type Range struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// MissingRanges lists the runs of windows with no bar between consecutive
// bars. bars must be ordered by WindowStart.
func MissingRanges(bars []candlev1.Bar, window uint64) []Range {
	var out []Range
	for i := 1; i < len(bars); i++ {
		prev, next := bars[i-1].WindowStart, bars[i].WindowStart
		if next-prev > window {
			out = append(out, Range{From: prev + window, To: next - window})
		}
	}
	return out
}

// FillGaps returns bars with every missing window replaced by a flat,
// zero-volume bar at the previous close. The aggregator never does this on
// its own.
func FillGaps(bars []candlev1.Bar, window uint64) []candlev1.Bar {
	if len(bars) == 0 || window == 0 {
		return bars
	}

	out := make([]candlev1.Bar, 0, len(bars))
	out = append(out, bars[0])
	for _, bar := range bars[1:] {
		last := out[len(out)-1]
		for ws := last.WindowStart + window; ws < bar.WindowStart; ws += window {
			out = append(out, last.Flat(ws))
		}
		out = append(out, bar)
	}
	return out
}
