package replay

import (
	"bytes"
	"context"
	"fmt"
	"time"

	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
	checkpointv1 "github.com/muhammadchandra19/tickstore/internal/domain/checkpoint/v1"
	orderbookv1 "github.com/muhammadchandra19/tickstore/internal/domain/orderbook/v1"
	"github.com/muhammadchandra19/tickstore/internal/usecase/candle"
	"github.com/muhammadchandra19/tickstore/internal/usecase/orderbook"
	"github.com/muhammadchandra19/tickstore/pkg/dtf"
	"github.com/muhammadchandra19/tickstore/pkg/interval"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
)

// Recorder receives replay metrics.
type Recorder interface {
	RecordRecords(symbol string, n int)
	RecordGap(symbol string)
	RecordBar(symbol, interval string)
	RecordReplayDuration(symbol string, d time.Duration)
	RecordError(component, errorType string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRecords(string, int) {}
func (nopRecorder) RecordGap(string) {}
func (nopRecorder) RecordBar(string, string) {}
func (nopRecorder) RecordReplayDuration(string, time.Duration) {}
func (nopRecorder) RecordError(string, string) {}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithTradePolicy sets how trades affect the book.
func WithTradePolicy(p orderbookv1.TradePolicy) Option {
	return func(s *Session) { s.engineOptions.TradePolicy = p }
}

// WithCheckpoint resumes from cp. Records at or below the checkpointed
// sequence are skipped.
func WithCheckpoint(cp *checkpointv1.Checkpoint) Option {
	return func(s *Session) { s.resume = cp }
}

// Session replays one symbol through one order book engine and one candle
// aggregator. It is not safe for concurrent use.
type Session struct {
	symbol   string
	interval interval.Interval

	engineOptions *orderbook.Options
	engine        *orderbook.Engine
	candles       *candle.Aggregator

	logger   *logger.Logger
	recorder Recorder
	resume   *checkpointv1.Checkpoint

	records uint64
	gaps    uint64
	bars    []candlev1.Bar
	started time.Time
}

// Result is the outcome of a finished session.
type Result struct {
	Symbol   string               `json:"symbol"`
	Interval string               `json:"interval"`
	Records  uint64               `json:"records"`
	Gaps     uint64               `json:"gaps"`
	Bars     []candlev1.Bar       `json:"bars"`
	Book     orderbookv1.Snapshot `json:"book"`
}

// NewSession creates a session for symbol with bars of width iv.
func NewSession(symbol string, iv interval.Interval, opts ...Option) (*Session, error) {
	s := &Session{
		symbol:        symbol,
		interval:      iv,
		engineOptions: orderbook.DefaultEngineOptions(),
		logger:        logger.NewNopLogger(),
		recorder:      nopRecorder{},
		started:       time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	agg, err := candle.NewAggregatorForInterval(iv)
	if err != nil {
		return nil, err
	}
	s.candles = agg
	s.engine = orderbook.NewEngine(s.engineOptions)

	if s.resume != nil {
		s.engine.Restore(s.resume.Book)
		s.candles.Restore(s.resume.Candle)
		s.records = s.resume.Records
		s.gaps = s.resume.Gaps
	}
	return s, nil
}

// Symbol returns the replayed symbol.
func (s *Session) Symbol() string {
	return s.symbol
}

// Apply feeds one record to the engine and the aggregator. Sequence gaps are
// logged and counted; invalid and late records abort.
func (s *Session) Apply(ctx context.Context, u dtf.Update) error {
	gap, err := s.engine.Apply(u)
	if err != nil {
		s.recorder.RecordError("replay", "invalid_record")
		return fmt.Errorf("%s seq %d: %w", s.symbol, u.Sequence, err)
	}
	if gap != nil {
		s.gaps++
		s.recorder.RecordGap(s.symbol)
		s.logger.WarnContext(ctx, gap.String(),
			logger.NewField("symbol", s.symbol),
			logger.NewField("ts", u.Timestamp),
		)
	}

	bar, err := s.candles.Apply(u)
	if err != nil {
		s.recorder.RecordError("replay", "late_record")
		return fmt.Errorf("%s seq %d: %w", s.symbol, u.Sequence, err)
	}
	if bar != nil {
		s.emit(*bar)
	}

	s.records++
	return nil
}

// Replay applies the records of f in [from, to] in one forward pass. The
// context is checked between blocks.
func (s *Session) Replay(ctx context.Context, f *dtf.File, from, to uint64) error {
	var (
		it      = f.RangeIterator(from, to)
		block   = -1
		applied int
		skip    uint64
	)
	if s.resume != nil {
		skip = s.resume.Book.Sequence
	}
	defer func() { s.recorder.RecordRecords(s.symbol, applied) }()

	for it.Next() {
		if b := it.Block(); b != block {
			block = b
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		u := it.Update()
		if skip > 0 && u.Sequence <= skip {
			continue
		}
		if err := s.Apply(ctx, u); err != nil {
			return err
		}
		applied++
	}
	if err := it.Err(); err != nil {
		s.recorder.RecordError("replay", "decode")
		return fmt.Errorf("%s: %w", s.symbol, err)
	}
	return nil
}

// ReplayBytes replays an in-memory DTF file.
func (s *Session) ReplayBytes(ctx context.Context, data []byte, from, to uint64) error {
	f, err := dtf.Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Replay(ctx, f, from, to)
}

// Checkpoint captures the state needed to resume the session.
func (s *Session) Checkpoint() *checkpointv1.Checkpoint {
	return &checkpointv1.Checkpoint{
		Symbol:    s.symbol,
		Interval:  s.interval.Name,
		Book:      s.engine.Snapshot(),
		Candle:    s.candles.Progress(),
		Records:   s.records,
		Gaps:      s.gaps,
		UpdatedAt: time.Now().UTC(),
	}
}

// Book returns the current order book.
func (s *Session) Book() orderbookv1.Snapshot {
	return s.engine.Snapshot()
}

// TakeBars returns the bars closed since the last call.
func (s *Session) TakeBars() []candlev1.Bar {
	bars := s.bars
	s.bars = nil
	return bars
}

// Finish flushes the open bar and returns the result. Bars already taken
// with TakeBars are not repeated.
func (s *Session) Finish() Result {
	if bar, ok := s.candles.Flush(); ok {
		s.emit(*bar)
	}
	s.recorder.RecordReplayDuration(s.symbol, time.Since(s.started))

	return Result{
		Symbol:   s.symbol,
		Interval: s.interval.Name,
		Records:  s.records,
		Gaps:     s.gaps,
		Bars:     s.TakeBars(),
		Book:     s.engine.Snapshot(),
	}
}

func (s *Session) emit(bar candlev1.Bar) {
	s.bars = append(s.bars, bar)
	s.recorder.RecordBar(s.symbol, s.interval.Name)
}
