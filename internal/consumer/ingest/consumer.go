package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	ingestv1 "github.com/muhammadchandra19/tickstore/internal/domain/ingest/v1"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"
)

const fetchRetryDelay = time.Second

// Ingester buffers raw events into DTF files.
type Ingester interface {
	Ingest(ctx context.Context, event ingestv1.RawEvent) error
	FlushAll(ctx context.Context) error
}

// ReaderConfig is the Kafka source of raw events.
type ReaderConfig struct {
	Brokers       []string
	Topic         string
	ConsumerGroup string
}

// NewReader creates a consumer-group reader with manual commits.
func NewReader(config ReaderConfig) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     config.Brokers,
		Topic:       config.Topic,
		GroupID:     config.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
}

// Consumer feeds raw events from Kafka into an Ingester. Offsets are
// committed only after the events they cover have been flushed to files, so
// delivery is at least once.
type Consumer struct {
	reader        ingestv1.MessageReader
	ingester      Ingester
	logger        *logger.Logger
	flushInterval time.Duration
}

// NewConsumer creates a consumer that flushes every flushInterval.
func NewConsumer(reader ingestv1.MessageReader, ingester Ingester, logger *logger.Logger, flushInterval time.Duration) *Consumer {
	if flushInterval <= 0 {
		flushInterval = time.Minute
	}
	return &Consumer{
		reader:        reader,
		ingester:      ingester,
		logger:        logger,
		flushInterval: flushInterval,
	}
}

// Run consumes until ctx is cancelled or the reader is closed, then flushes
// what is buffered and commits it.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "starting ingest consumer", logger.NewField("action", "ingest_consumer_start"))

	msgs := make(chan kafka.Message)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(msgs)
		for {
			msg, err := c.reader.FetchMessage(gctx)
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, io.EOF) {
					return nil
				}
				c.logger.ErrorContext(gctx, err, logger.NewField("action", "fetch_message"))
				select {
				case <-time.After(fetchRetryDelay):
				case <-gctx.Done():
					return nil
				}
				continue
			}
			select {
			case msgs <- msg:
			case <-gctx.Done():
				return nil
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(c.flushInterval)
		defer ticker.Stop()

		var pending []kafka.Message
		for {
			select {
			case <-gctx.Done():
				return c.commit(context.WithoutCancel(ctx), pending)
			case <-ticker.C:
				if err := c.commit(gctx, pending); err != nil {
					c.logger.ErrorContext(gctx, err, logger.NewField("action", "periodic_flush"))
					continue
				}
				pending = nil
			case msg, ok := <-msgs:
				if !ok {
					return c.commit(context.WithoutCancel(ctx), pending)
				}
				c.handle(gctx, msg)
				pending = append(pending, msg)
			}
		}
	})

	err := g.Wait()
	c.logger.InfoContext(ctx, "ingest consumer stopped", logger.NewField("action", "ingest_consumer_stop"))
	return err
}

// handle ingests one message. Undecodable and rejected events are logged and
// skipped; their offsets are committed with the rest.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var event ingestv1.RawEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.ErrorContext(ctx, err,
			logger.NewField("action", "unmarshal_event"),
			logger.NewField("offset", msg.Offset),
		)
		return
	}
	if err := c.ingester.Ingest(ctx, event); err != nil {
		c.logger.ErrorContext(ctx, err,
			logger.NewField("action", "ingest_event"),
			logger.NewField("symbol", event.Symbol),
			logger.NewField("offset", msg.Offset),
		)
	}
}

func (c *Consumer) commit(ctx context.Context, pending []kafka.Message) error {
	if len(pending) == 0 {
		return nil
	}
	if err := c.ingester.FlushAll(ctx); err != nil {
		return err
	}
	return c.reader.CommitMessages(ctx, pending...)
}

// Close closes the reader.
func (c *Consumer) Close() error {
	c.logger.InfoContext(context.Background(), "stopping ingest consumer", logger.NewField("action", "ingest_consumer_close"))
	return c.reader.Close()
}
