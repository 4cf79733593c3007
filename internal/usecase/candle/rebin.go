package candle

import (
	"fmt"

	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
)

// Rebin rolls bars of width window up into bars of width newWindow, which must
// be a multiple of window. Output bars start on the newWindow grid, so they
// match what aggregating the underlying trades at newWindow would produce.
// Windows with no input bars stay absent. bars must be ordered by WindowStart
// and aligned to window.
func Rebin(bars []candlev1.Bar, window, newWindow uint64) ([]candlev1.Bar, error) {
	switch {
	case window == 0 || newWindow == 0:
		return nil, fmt.Errorf("%w: windows must be positive", candlev1.ErrInvalidWindow)
	case newWindow%window != 0:
		return nil, fmt.Errorf("%w: %d is not a multiple of %d", candlev1.ErrInvalidWindow, newWindow, window)
	}

	var out []candlev1.Bar
	for i, bar := range bars {
		if bar.WindowStart%window != 0 {
			return nil, fmt.Errorf("%w: bar at %d is not on the %d grid", candlev1.ErrInvalidWindow, bar.WindowStart, window)
		}
		if i > 0 && bar.WindowStart <= bars[i-1].WindowStart {
			return nil, fmt.Errorf("%w: bar at %d follows %d", candlev1.ErrLateRecord, bar.WindowStart, bars[i-1].WindowStart)
		}

		start := bar.WindowStart / newWindow * newWindow
		if n := len(out); n > 0 && out[n-1].WindowStart == start {
			out[n-1].Merge(bar)
			continue
		}
		bar.WindowStart = start
		out = append(out, bar)
	}
	return out, nil
}
