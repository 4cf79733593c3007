package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/muhammadchandra19/tickstore/internal/bootstrap"
	replayUc "github.com/muhammadchandra19/tickstore/internal/usecase/replay"
	"github.com/muhammadchandra19/tickstore/pkg/config"
	"github.com/muhammadchandra19/tickstore/pkg/dtf"
	"github.com/muhammadchandra19/tickstore/pkg/interval"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/samber/lo"
)

func main() {
	var (
		symbols   = flag.String("symbols", "", "comma-separated symbols to replay (default: every catalogued symbol)")
		intervals = flag.String("intervals", "", "comma-separated bar intervals (default: REPLAY_ENABLED_INTERVALS)")
		from      = flag.Uint64("from", 0, "first timestamp to replay, microseconds since epoch")
		to        = flag.Uint64("to", math.MaxUint64, "last timestamp to replay, inclusive")
		workers   = flag.Int("workers", -1, "parallel replays (default: REPLAY_WORKERS)")
		output    = flag.String("output", "", "write the replay results as JSON to this file")
		dump      = flag.String("dump", "", "write the raw records of the first symbol in range as CSV to this file")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *workers < 0 {
		*workers = cfg.Replay.Workers
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		symbols:   splitList(*symbols),
		intervals: splitList(*intervals),
		from:      *from,
		to:        *to,
		workers:   *workers,
		output:    *output,
		dump:      *dump,
	}
	if err := run(ctx, cfg, opts); err != nil {
		slog.Error("Replay failed", "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	symbols   []string
	intervals []string
	from, to  uint64
	workers   int
	output    string
	dump      string
}

func run(ctx context.Context, cfg *config.Config, opts runOptions) error {
	b, err := bootstrap.New(cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			b.Logger.Error(err, logger.NewField("action", "close"))
		}
	}()

	if err := b.InitReplay(ctx); err != nil {
		return err
	}

	symbols := opts.symbols
	if len(symbols) == 0 {
		if symbols, err = b.Catalog.Symbols(ctx); err != nil {
			return err
		}
	}
	ivs, err := resolveIntervals(cfg, opts.intervals)
	if err != nil {
		return err
	}

	targets := lo.FlatMap(symbols, func(symbol string, _ int) []replayUc.Target {
		return lo.Map(ivs, func(iv interval.Interval, _ int) replayUc.Target {
			return replayUc.Target{Symbol: symbol, Interval: iv}
		})
	})
	b.Logger.InfoContext(ctx, "replay started",
		logger.NewField("symbols", symbols),
		logger.NewField("intervals", lo.Map(ivs, func(iv interval.Interval, _ int) string { return iv.Name })),
		logger.NewField("from", opts.from),
		logger.NewField("to", opts.to),
	)

	results, err := b.Usecase.ReplayUsecase.RunMany(ctx, targets, opts.from, opts.to, opts.workers)
	if err != nil {
		return err
	}
	for _, res := range results {
		b.Logger.InfoContext(ctx, "replayed",
			logger.NewField("symbol", res.Symbol),
			logger.NewField("interval", res.Interval),
			logger.NewField("records", res.Records),
			logger.NewField("gaps", res.Gaps),
			logger.NewField("bars", len(res.Bars)),
		)
	}

	if opts.output != "" {
		if err := writeJSON(opts.output, results); err != nil {
			return err
		}
	}
	if opts.dump != "" && len(symbols) > 0 {
		return dumpCSV(ctx, b, symbols[0], opts.from, opts.to, opts.dump)
	}
	return nil
}

func resolveIntervals(cfg *config.Config, names []string) ([]interval.Interval, error) {
	if len(names) == 0 {
		return cfg.Replay.Intervals.GetEnabledIntervals()
	}
	return (interval.Config{EnabledIntervals: names}).GetEnabledIntervals()
}

func writeJSON(path string, results []*replayUc.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// dumpCSV writes every record of symbol in [from, to] from the catalogued files.
func dumpCSV(ctx context.Context, b *bootstrap.Bootstrap, symbol string, from, to uint64, path string) error {
	entries, err := b.Catalog.FindOverlapping(ctx, symbol, from, to)
	if err != nil {
		return err
	}

	var records []dtf.Update
	for _, entry := range entries {
		f, err := b.Files.Open(entry.Path)
		if err != nil {
			return err
		}
		it := f.RangeIterator(from, to)
		for it.Next() {
			records = append(records, it.Update())
		}
		err = it.Err()
		f.Close()
		if err != nil {
			return err
		}
	}

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dtf.WriteCSV(out, records); err != nil {
		out.Close()
		return err
	}
	b.Logger.InfoContext(ctx, "records dumped", logger.NewField("path", path), logger.NewField("records", len(records)))
	return out.Close()
}

func splitList(s string) []string {
	return lo.Compact(lo.Map(strings.Split(s, ","), func(part string, _ int) string {
		return strings.TrimSpace(part)
	}))
}
