package candle

import (
	"fmt"

	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
	"github.com/muhammadchandra19/tickstore/pkg/dtf"
)

// VolumeAggregator closes a bar once its traded size reaches threshold.
// WindowStart of each bar is the timestamp of its first trade.
type VolumeAggregator struct {
	threshold float64
	current   *candlev1.Bar
	lastTs    uint64
}

// NewVolumeAggregator creates a volume bar aggregator.
func NewVolumeAggregator(threshold float64) (*VolumeAggregator, error) {
	if !(threshold > 0) {
		return nil, fmt.Errorf("%w: volume threshold must be positive", candlev1.ErrInvalidWindow)
	}
	return &VolumeAggregator{threshold: threshold}, nil
}

// Apply folds a trade and returns the bar it completed, if any.
func (v *VolumeAggregator) Apply(u dtf.Update) (*candlev1.Bar, error) {
	if !u.IsTrade() {
		return nil, nil
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if u.Timestamp < v.lastTs {
		return nil, fmt.Errorf("%w: trade at %d after %d", candlev1.ErrLateRecord, u.Timestamp, v.lastTs)
	}
	v.lastTs = u.Timestamp

	if v.current == nil {
		bar := candlev1.NewBar(u.Timestamp, u.Price, u.Size)
		v.current = &bar
	} else {
		v.current.Extend(u.Price, u.Size)
	}

	if v.current.Volume < v.threshold {
		return nil, nil
	}
	done := v.current
	v.current = nil
	return done, nil
}

// Flush returns the partial bar, if any.
func (v *VolumeAggregator) Flush() (*candlev1.Bar, bool) {
	if v.current == nil {
		return nil, false
	}
	done := v.current
	v.current = nil
	return done, true
}
