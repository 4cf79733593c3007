package candle

import (
	"fmt"

	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
	"github.com/muhammadchandra19/tickstore/pkg/dtf"
	"github.com/muhammadchandra19/tickstore/pkg/interval"
)

// Aggregator folds trades into fixed-width time bars. Book events are ignored.
// It is not safe for concurrent use.
type Aggregator struct {
	window  uint64
	current *candlev1.Bar

	closed     bool
	lastClosed uint64
}

// NewAggregator creates an aggregator with window in timestamp units.
func NewAggregator(window uint64) (*Aggregator, error) {
	if window == 0 {
		return nil, fmt.Errorf("%w: window must be positive", candlev1.ErrInvalidWindow)
	}
	return &Aggregator{window: window}, nil
}

// NewAggregatorForInterval creates an aggregator for a named interval.
func NewAggregatorForInterval(iv interval.Interval) (*Aggregator, error) {
	return NewAggregator(iv.Window())
}

// Window returns the bar width.
func (a *Aggregator) Window() uint64 {
	return a.window
}

// Apply folds u into the open bar. When u starts a later window the previous
// bar is closed and returned. A trade for a window that is already closed, or
// earlier than the open one, fails with ErrLateRecord and changes nothing.
func (a *Aggregator) Apply(u dtf.Update) (*candlev1.Bar, error) {
	if !u.IsTrade() {
		return nil, nil
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	start := u.Timestamp / a.window * a.window

	if a.current == nil {
		if a.closed && start <= a.lastClosed {
			return nil, fmt.Errorf("%w: window %d closed at %d", candlev1.ErrLateRecord, start, a.lastClosed)
		}
		bar := candlev1.NewBar(start, u.Price, u.Size)
		a.current = &bar
		return nil, nil
	}

	switch {
	case start == a.current.WindowStart:
		a.current.Extend(u.Price, u.Size)
		return nil, nil
	case start < a.current.WindowStart:
		return nil, fmt.Errorf("%w: window %d before open window %d", candlev1.ErrLateRecord, start, a.current.WindowStart)
	}

	done := a.close()
	bar := candlev1.NewBar(start, u.Price, u.Size)
	a.current = &bar
	return done, nil
}

// Flush closes and returns the open bar, if any. The flushed window counts as
// closed: the next trade opens a new bar only if it falls in a later window,
// and a trade for the flushed window fails with ErrLateRecord.
func (a *Aggregator) Flush() (*candlev1.Bar, bool) {
	if a.current == nil {
		return nil, false
	}
	return a.close(), true
}

// Current returns a copy of the open bar.
func (a *Aggregator) Current() (candlev1.Bar, bool) {
	if a.current == nil {
		return candlev1.Bar{}, false
	}
	return *a.current, true
}

// Progress returns the state needed to resume aggregation.
func (a *Aggregator) Progress() candlev1.Progress {
	p := candlev1.Progress{Closed: a.closed, LastClosed: a.lastClosed}
	if a.current != nil {
		open := *a.current
		p.Open = &open
	}
	return p
}

// Restore resumes from p. The window is kept.
func (a *Aggregator) Restore(p candlev1.Progress) {
	a.current = nil
	if p.Open != nil {
		open := *p.Open
		a.current = &open
	}
	a.closed = p.Closed
	a.lastClosed = p.LastClosed
}

func (a *Aggregator) close() *candlev1.Bar {
	done := a.current
	a.current = nil
	a.closed = true
	a.lastClosed = done.WindowStart
	return done
}

// Aggregate runs updates through a fresh aggregator and returns every bar,
// the last one included.
func Aggregate(window uint64, updates []dtf.Update) ([]candlev1.Bar, error) {
	agg, err := NewAggregator(window)
	if err != nil {
		return nil, err
	}

	var bars []candlev1.Bar
	for _, u := range updates {
		bar, err := agg.Apply(u)
		if err != nil {
			return bars, err
		}
		if bar != nil {
			bars = append(bars, *bar)
		}
	}
	if bar, ok := agg.Flush(); ok {
		bars = append(bars, *bar)
	}
	return bars, nil
}
