package ingestv1

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessageReader reads raw events from the ingest topic.
//
//go:generate mockgen -source interface.go -destination=mock/interface_mock.go -package=ingestv1_mock
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher announces finalized files.
type Publisher interface {
	Publish(ctx context.Context, event FileFinalized) error
}
