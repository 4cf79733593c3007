package replay

import (
	"context"
	"errors"
	"fmt"
	"time"

	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
	catalogv1 "github.com/muhammadchandra19/tickstore/internal/domain/catalog/v1"
	checkpointv1 "github.com/muhammadchandra19/tickstore/internal/domain/checkpoint/v1"
	orderbookv1 "github.com/muhammadchandra19/tickstore/internal/domain/orderbook/v1"
	"github.com/muhammadchandra19/tickstore/pkg/dtf"
	apperrors "github.com/muhammadchandra19/tickstore/pkg/errors"
	"github.com/muhammadchandra19/tickstore/pkg/interval"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/muhammadchandra19/tickstore/pkg/util"
	"golang.org/x/sync/errgroup"
)

// ErrLeaseHeld is returned when another process is advancing the same checkpoint.
var ErrLeaseHeld = errors.New("checkpoint lease held by another replay")

// FileOpener opens a catalogued DTF file.
type FileOpener interface {
	Open(path string) (*dtf.File, error)
}

// BarSink receives closed bars.
type BarSink interface {
	StoreBars(ctx context.Context, symbol string, iv interval.Interval, bars []candlev1.Bar) error
}

// UsecaseOptions configures Usecase.
type UsecaseOptions struct {
	Owner       string
	LeaseTTL    time.Duration
	TradePolicy orderbookv1.TradePolicy
}

// DefaultUsecaseOptions returns the default usecase options.
func DefaultUsecaseOptions() *UsecaseOptions {
	return &UsecaseOptions{
		Owner:       util.NewID(),
		LeaseTTL:    5 * time.Minute,
		TradePolicy: orderbookv1.TradeDecoupled,
	}
}

// Usecase replays catalogued files for a symbol, resuming from and advancing
// its checkpoint, and hands closed bars to a sink.
type Usecase struct {
	catalog     catalogv1.Catalog
	files       FileOpener
	checkpoints checkpointv1.Store
	bars        BarSink
	recorder    Recorder
	logger      *logger.Logger
	options     *UsecaseOptions
}

// NewUsecase creates a replay usecase. checkpoints and bars may be nil.
func NewUsecase(
	catalog catalogv1.Catalog,
	files FileOpener,
	checkpoints checkpointv1.Store,
	bars BarSink,
	recorder Recorder,
	logger *logger.Logger,
	options *UsecaseOptions,
) *Usecase {
	if options == nil {
		options = DefaultUsecaseOptions()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Usecase{
		catalog:     catalog,
		files:       files,
		checkpoints: checkpoints,
		bars:        bars,
		recorder:    recorder,
		logger:      logger,
		options:     options,
	}
}

// Run replays symbol over [from, to]. Bars are stored and the checkpoint is
// saved after every file.
func (u *Usecase) Run(ctx context.Context, symbol string, iv interval.Interval, from, to uint64) (*Result, error) {
	ctx = util.WithSymbol(util.WithSessionID(ctx, u.options.Owner), symbol)

	opts := []Option{
		WithLogger(u.logger),
		WithRecorder(u.recorder),
		WithTradePolicy(u.options.TradePolicy),
	}

	if u.checkpoints != nil {
		ok, err := u.checkpoints.Acquire(ctx, symbol, iv.Name, u.options.Owner, u.options.LeaseTTL)
		if err != nil {
			return nil, apperrors.TracerFromError(err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrLeaseHeld, checkpointv1.Key(symbol, iv.Name))
		}
		defer func() {
			if err := u.checkpoints.Release(context.WithoutCancel(ctx), symbol, iv.Name); err != nil {
				u.logger.ErrorContext(ctx, err)
			}
		}()

		cp, err := u.checkpoints.Load(ctx, symbol, iv.Name)
		if err != nil {
			return nil, apperrors.TracerFromError(err)
		}
		if cp != nil {
			u.logger.InfoContext(ctx, "resuming replay from checkpoint",
				logger.NewField("sequence", cp.Book.Sequence),
				logger.NewField("records", cp.Records),
			)
			opts = append(opts, WithCheckpoint(cp))
		}
	}

	session, err := NewSession(symbol, iv, opts...)
	if err != nil {
		return nil, apperrors.TracerFromError(err)
	}

	entries, err := u.catalog.FindOverlapping(ctx, symbol, from, to)
	if err != nil {
		return nil, apperrors.TracerFromError(err)
	}

	var bars []candlev1.Bar
	for _, entry := range entries {
		if err := u.replayFile(ctx, session, entry, from, to); err != nil {
			return nil, err
		}

		closed := session.TakeBars()
		if err := u.storeBars(ctx, symbol, iv, closed); err != nil {
			return nil, err
		}
		bars = append(bars, closed...)

		if err := u.saveCheckpoint(ctx, session); err != nil {
			return nil, err
		}
	}

	result := session.Finish()
	if err := u.storeBars(ctx, symbol, iv, result.Bars); err != nil {
		return nil, err
	}
	result.Bars = append(bars, result.Bars...)

	u.logger.InfoContext(ctx, "replay finished",
		logger.NewField("files", len(entries)),
		logger.NewField("records", result.Records),
		logger.NewField("gaps", result.Gaps),
		logger.NewField("bars", len(result.Bars)),
	)
	return &result, nil
}

func (u *Usecase) replayFile(ctx context.Context, session *Session, entry catalogv1.Entry, from, to uint64) error {
	f, err := u.files.Open(entry.Path)
	if err != nil {
		return apperrors.TracerFromError(err)
	}
	defer f.Close()

	u.logger.DebugContext(ctx, "replaying file",
		logger.NewField("path", entry.Path),
		logger.NewField("records", entry.Records),
	)
	if err := session.Replay(ctx, f, from, to); err != nil {
		u.logger.ErrorContext(ctx, err, logger.NewField("path", entry.Path))
		return apperrors.TracerFromError(err)
	}
	return nil
}

func (u *Usecase) storeBars(ctx context.Context, symbol string, iv interval.Interval, bars []candlev1.Bar) error {
	if u.bars == nil || len(bars) == 0 {
		return nil
	}
	if err := u.bars.StoreBars(ctx, symbol, iv, bars); err != nil {
		return apperrors.TracerFromError(err)
	}
	return nil
}

func (u *Usecase) saveCheckpoint(ctx context.Context, session *Session) error {
	if u.checkpoints == nil {
		return nil
	}
	if err := u.checkpoints.Save(ctx, session.Checkpoint()); err != nil {
		return apperrors.TracerFromError(err)
	}
	return nil
}

// Target names one symbol and interval to replay.
type Target struct {
	Symbol   string
	Interval interval.Interval
}

// RunMany runs every target over [from, to], at most workers at a time
// (unbounded when workers <= 0). Results are in target order.
func (u *Usecase) RunMany(ctx context.Context, targets []Target, from, to uint64, workers int) ([]*Result, error) {
	results := make([]*Result, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, target := range targets {
		g.Go(func() error {
			res, err := u.Run(ctx, target.Symbol, target.Interval, from, to)
			if err != nil {
				return fmt.Errorf("replay %s/%s: %w", target.Symbol, target.Interval.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
