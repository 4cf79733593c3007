package candle

import (
	"context"
	"sort"
	"time"

	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
	"github.com/muhammadchandra19/tickstore/pkg/errors"
	"github.com/muhammadchandra19/tickstore/pkg/interval"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
)

// Usecase stores and reads closed bars.
type Usecase struct {
	repository candlev1.Repository
	logger     *logger.Logger
}

// NewUsecase creates a new candle usecase.
func NewUsecase(repository candlev1.Repository, logger *logger.Logger) *Usecase {
	return &Usecase{repository: repository, logger: logger}
}

// StoreBars stores bars produced for symbol at iv.
func (u *Usecase) StoreBars(ctx context.Context, symbol string, iv interval.Interval, bars []candlev1.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	records := make([]*candlev1.BarRecord, len(bars))
	for i, bar := range bars {
		records[i] = &candlev1.BarRecord{
			Timestamp: interval.ToTime(bar.WindowStart),
			Symbol:    symbol,
			Interval:  iv.Name,
			Bar:       bar,
		}
	}

	if err := u.repository.StoreBatch(ctx, records); err != nil {
		return errors.TracerFromError(err)
	}

	u.logger.DebugContext(ctx, "bars stored",
		logger.NewField("symbol", symbol),
		logger.NewField("interval", iv.Name),
		logger.NewField("count", len(records)),
	)
	return nil
}

// Latest returns the most recent stored bar, nil if there is none.
func (u *Usecase) Latest(ctx context.Context, symbol string, iv interval.Interval) (*candlev1.BarRecord, error) {
	bar, err := u.repository.GetLatest(ctx, symbol, iv.Name)
	if err != nil {
		return nil, errors.TracerFromError(err)
	}
	return bar, nil
}

// History returns stored bars matching filter.
func (u *Usecase) History(ctx context.Context, filter candlev1.Filter) ([]*candlev1.BarRecord, error) {
	bars, err := u.repository.GetByFilter(ctx, filter)
	if err != nil {
		return nil, errors.TracerFromError(err)
	}
	return bars, nil
}

// Rollup reads the stored src bars of symbol in [from, to], rebins them to dst
// and stores the result. It returns the number of dst bars written.
func (u *Usecase) Rollup(ctx context.Context, symbol string, src, dst interval.Interval, from, to time.Time) (int, error) {
	records, err := u.History(ctx, candlev1.Filter{Symbol: symbol, Interval: src.Name, From: &from, To: &to})
	if err != nil {
		return 0, err
	}

	bars := make([]candlev1.Bar, len(records))
	for i, r := range records {
		bars[i] = r.Bar
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].WindowStart < bars[j].WindowStart })

	rebinned, err := Rebin(bars, src.Window(), dst.Window())
	if err != nil {
		return 0, errors.TracerFromError(err)
	}
	if err := u.StoreBars(ctx, symbol, dst, rebinned); err != nil {
		return 0, err
	}
	return len(rebinned), nil
}
