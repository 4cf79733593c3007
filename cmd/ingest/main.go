package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/muhammadchandra19/tickstore/internal/bootstrap"
	"github.com/muhammadchandra19/tickstore/internal/consumer/ingest"
	"github.com/muhammadchandra19/tickstore/pkg/config"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	reindex := flag.Bool("reindex", false, "rebuild the catalog from the files on disk and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *reindex); err != nil {
		slog.Error("Ingest stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, reindex bool) error {
	b, err := bootstrap.New(cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			b.Logger.Error(err, logger.NewField("action", "close"))
		}
	}()

	if err := b.InitIngest(ctx); err != nil {
		return err
	}

	if reindex {
		n, err := b.Usecase.IngestUsecase.Reindex(ctx)
		if err != nil {
			return err
		}
		b.Logger.InfoContext(ctx, "catalog rebuilt", logger.NewField("files", n))
		return nil
	}

	consumer := ingest.NewConsumer(
		ingest.NewReader(ingest.ReaderConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.RawTopic,
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		}),
		b.Usecase.IngestUsecase,
		b.Logger,
		cfg.Store.FlushInterval,
	)
	defer consumer.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           b.Health.Handler(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b.Logger.Info("http server listening", logger.NewField("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		b.Logger.Info("ingest consumer started",
			logger.NewField("topic", cfg.Kafka.RawTopic),
			logger.NewField("group", cfg.Kafka.ConsumerGroup),
		)
		return consumer.Run(ctx)
	})

	err = g.Wait()
	b.Logger.Info("ingest shut down")
	return err
}
