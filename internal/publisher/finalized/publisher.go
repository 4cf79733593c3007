package finalized

import (
	"context"
	"encoding/json"

	ingestv1 "github.com/muhammadchandra19/tickstore/internal/domain/ingest/v1"
	"github.com/muhammadchandra19/tickstore/pkg/errors"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config is the Kafka destination of finalized-file notices.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher publishes FileFinalized notices to Kafka, keyed by symbol so
// notices of one symbol stay ordered.
type Publisher struct {
	kafkaWriter messageWriter
	logger      *logger.Logger
}

var _ ingestv1.Publisher = (*Publisher)(nil)

// NewPublisher creates a Kafka publisher.
func NewPublisher(config Config, logger *logger.Logger) *Publisher {
	kafkaWriter := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Topic:                  config.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{kafkaWriter: kafkaWriter, logger: logger}
}

// Publish sends event.
func (p *Publisher) Publish(ctx context.Context, event ingestv1.FileFinalized) error {
	value, err := json.Marshal(event)
	if err != nil {
		return errors.TracerFromError(err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Symbol),
		Value: value,
	}
	if err := p.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		p.logger.ErrorContext(ctx, err,
			logger.NewField("key", event.Key),
			logger.NewField("symbol", event.Symbol),
		)
		return errors.NewTracer("failed to publish file finalized").Wrap(err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.kafkaWriter.Close()
}
