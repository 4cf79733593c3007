package ingest

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	ingestv1 "github.com/muhammadchandra19/tickstore/internal/domain/ingest/v1"
	ingestv1_mock "github.com/muhammadchandra19/tickstore/internal/domain/ingest/v1/mock"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIngester struct {
	mu       sync.Mutex
	events   []ingestv1.RawEvent
	flushes  int
	flushErr error
	ingested chan struct{}
}

func newFakeIngester() *fakeIngester {
	return &fakeIngester{ingested: make(chan struct{}, 16)}
}

func (f *fakeIngester) Ingest(_ context.Context, event ingestv1.RawEvent) error {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	f.ingested <- struct{}{}
	if event.Symbol == "" {
		return errors.New("event without symbol")
	}
	return nil
}

func (f *fakeIngester) FlushAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
	return f.flushErr
}

func message(offset int64, value string) kafka.Message {
	return kafka.Message{Topic: "raw-events", Offset: offset, Value: []byte(value)}
}

func blockUntilDone(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func TestConsumer_FlushesAndCommitsOnShutdown(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	bad := message(1, `{not json`)
	rejected := message(2, `{"ts":1,"seq":1,"kind":"add","side":"bid","price":1,"size":1}`)
	good := message(3, `{"symbol":"bnc_btc_eth","ts":2,"seq":2,"kind":"add","side":"bid","price":1,"size":1}`)

	reader := ingestv1_mock.NewMockMessageReader(ctrl)
	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(bad, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(rejected, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(good, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(blockUntilDone),
	)
	reader.EXPECT().CommitMessages(gomock.Any(), bad, rejected, good).Return(nil)

	ingester := newFakeIngester()
	c := NewConsumer(reader, ingester, logger.NewNopLogger(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	<-ingester.ingested
	<-ingester.ingested
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}

	assert.Len(t, ingester.events, 2)
	assert.Equal(t, "bnc_btc_eth", ingester.events[1].Symbol)
	assert.Equal(t, 1, ingester.flushes)
}

func TestConsumer_PeriodicFlush(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	msg := message(7, `{"symbol":"bnc_btc_eth","ts":2,"seq":2,"kind":"trade","side":"ask","price":1,"size":1}`)
	committed := make(chan struct{})

	reader := ingestv1_mock.NewMockMessageReader(ctrl)
	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).DoAndReturn(blockUntilDone),
	)
	reader.EXPECT().CommitMessages(gomock.Any(), msg).DoAndReturn(func(context.Context, ...kafka.Message) error {
		close(committed)
		return nil
	})

	ingester := newFakeIngester()
	c := NewConsumer(reader, ingester, logger.NewNopLogger(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-committed:
	case <-time.After(5 * time.Second):
		t.Fatal("no periodic commit")
	}
	cancel()
	require.NoError(t, <-done)

	ingester.mu.Lock()
	defer ingester.mu.Unlock()
	assert.Equal(t, 1, ingester.flushes, "nothing pending at shutdown")
}

func TestConsumer_ShutdownFlushFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	msg := message(1, `{"symbol":"bnc_btc_eth","ts":2,"seq":2,"kind":"add","side":"bid","price":1,"size":1}`)
	reader := ingestv1_mock.NewMockMessageReader(ctrl)
	gomock.InOrder(
		reader.EXPECT().FetchMessage(gomock.Any()).Return(msg, nil),
		reader.EXPECT().FetchMessage(gomock.Any()).Return(kafka.Message{}, io.EOF),
	)

	ingester := newFakeIngester()
	ingester.flushErr = errors.New("disk full")
	c := NewConsumer(reader, ingester, logger.NewNopLogger(), time.Hour)

	err := c.Run(context.Background())
	assert.ErrorContains(t, err, "disk full")
}

func TestConsumer_Close(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	reader := ingestv1_mock.NewMockMessageReader(ctrl)
	reader.EXPECT().Close().Return(nil)

	c := NewConsumer(reader, newFakeIngester(), logger.NewNopLogger(), 0)
	assert.NoError(t, c.Close())
	assert.Equal(t, time.Minute, c.flushInterval)
}
