package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
	checkpointv1 "github.com/muhammadchandra19/tickstore/internal/domain/checkpoint/v1"
	orderbookv1 "github.com/muhammadchandra19/tickstore/internal/domain/orderbook/v1"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	redis_mock "github.com/muhammadchandra19/tickstore/pkg/redis/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCheckpoint() *checkpointv1.Checkpoint {
	return &checkpointv1.Checkpoint{
		Symbol:   "bnc_btc_eth",
		Interval: "1m",
		Book: orderbookv1.Snapshot{
			Timestamp: 100,
			Sequence:  7,
			Bids:      []orderbookv1.Level{{Price: 10, Size: 1}},
			Asks:      []orderbookv1.Level{{Price: 11, Size: 2}},
		},
		Candle: candlev1.Progress{
			Open:       &candlev1.Bar{WindowStart: 60, Open: 1, High: 1, Low: 1, Close: 1, Volume: 1, TradeCount: 1},
			Closed:     true,
			LastClosed: 0,
		},
		Records:   7,
		UpdatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestStore_Save(t *testing.T) {
	testCases := []struct {
		name     string
		mockFn   func(m *redis_mock.MockClient)
		assertFn func(t *testing.T, err error)
	}{
		{
			name: "success",
			mockFn: func(m *redis_mock.MockClient) {
				m.EXPECT().Set(gomock.Any(), "checkpoint:bnc_btc_eth:1m", gomock.Any(), time.Hour).
					DoAndReturn(func(_ context.Context, _ string, value any, _ time.Duration) error {
						var cp checkpointv1.Checkpoint
						require.NoError(t, json.Unmarshal(value.([]byte), &cp))
						assert.Equal(t, *testCheckpoint(), cp)
						return nil
					})
			},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "redis error",
			mockFn: func(m *redis_mock.MockClient) {
				m.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("down"))
			},
			assertFn: func(t *testing.T, err error) {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "checkpoint_store_error")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			client := redis_mock.NewMockClient(ctrl)
			tc.mockFn(client)

			store := NewStore(client, time.Hour, logger.NewNopLogger())
			tc.assertFn(t, store.Save(context.Background(), testCheckpoint()))
		})
	}
}

func TestStore_Load(t *testing.T) {
	stored, err := json.Marshal(testCheckpoint())
	require.NoError(t, err)

	testCases := []struct {
		name     string
		mockFn   func(m *redis_mock.MockClient)
		assertFn func(t *testing.T, cp *checkpointv1.Checkpoint, err error)
	}{
		{
			name: "success",
			mockFn: func(m *redis_mock.MockClient) {
				m.EXPECT().Get(gomock.Any(), "checkpoint:bnc_btc_eth:1m").Return(string(stored), nil)
			},
			assertFn: func(t *testing.T, cp *checkpointv1.Checkpoint, err error) {
				require.NoError(t, err)
				assert.Equal(t, testCheckpoint(), cp)
			},
		},
		{
			name: "missing",
			mockFn: func(m *redis_mock.MockClient) {
				m.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", nil)
			},
			assertFn: func(t *testing.T, cp *checkpointv1.Checkpoint, err error) {
				assert.NoError(t, err)
				assert.Nil(t, cp)
			},
		},
		{
			name: "redis error",
			mockFn: func(m *redis_mock.MockClient) {
				m.EXPECT().Get(gomock.Any(), gomock.Any()).Return("", errors.New("down"))
			},
			assertFn: func(t *testing.T, cp *checkpointv1.Checkpoint, err error) {
				assert.Error(t, err)
				assert.Nil(t, cp)
			},
		},
		{
			name: "corrupt document",
			mockFn: func(m *redis_mock.MockClient) {
				m.EXPECT().Get(gomock.Any(), gomock.Any()).Return("{", nil)
			},
			assertFn: func(t *testing.T, cp *checkpointv1.Checkpoint, err error) {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "checkpoint_unmarshal_error")
				assert.Nil(t, cp)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			client := redis_mock.NewMockClient(ctrl)
			tc.mockFn(client)

			store := NewStore(client, 0, logger.NewNopLogger())
			cp, err := store.Load(context.Background(), "bnc_btc_eth", "1m")
			tc.assertFn(t, cp, err)
		})
	}
}

func TestStore_DeleteAndList(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := redis_mock.NewMockClient(ctrl)
	store := NewStore(client, 0, logger.NewNopLogger())
	ctx := context.Background()

	client.EXPECT().Del(gomock.Any(), "checkpoint:bnc_btc_eth:1m").Return(int64(1), nil)
	require.NoError(t, store.Delete(ctx, "bnc_btc_eth", "1m"))

	client.EXPECT().Del(gomock.Any(), gomock.Any()).Return(int64(0), errors.New("down"))
	assert.Error(t, store.Delete(ctx, "bnc_btc_eth", "1m"))

	client.EXPECT().Scan(gomock.Any(), "checkpoint:*").Return([]string{"checkpoint:a_b_c:1m", "checkpoint:d_e_f:5m"}, nil)
	keys, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a_b_c:1m", "d_e_f:5m"}, keys)

	client.EXPECT().Scan(gomock.Any(), gomock.Any()).Return(nil, errors.New("down"))
	_, err = store.List(ctx)
	assert.Error(t, err)
}

func TestStore_Lease(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := redis_mock.NewMockClient(ctrl)
	store := NewStore(client, 0, logger.NewNopLogger())
	ctx := context.Background()

	gomock.InOrder(
		client.EXPECT().SetNX(gomock.Any(), "checkpoint-lease:bnc_btc_eth:1m", "worker-1", time.Minute).Return(true, nil),
		client.EXPECT().SetNX(gomock.Any(), "checkpoint-lease:bnc_btc_eth:1m", "worker-2", time.Minute).Return(false, nil),
		client.EXPECT().Del(gomock.Any(), "checkpoint-lease:bnc_btc_eth:1m").Return(int64(1), nil),
		client.EXPECT().SetNX(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("down")),
	)

	ok, err := store.Acquire(ctx, "bnc_btc_eth", "1m", "worker-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Acquire(ctx, "bnc_btc_eth", "1m", "worker-2", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Release(ctx, "bnc_btc_eth", "1m"))

	_, err = store.Acquire(ctx, "bnc_btc_eth", "1m", "worker-3", time.Minute)
	assert.Error(t, err)
}
