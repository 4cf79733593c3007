package candle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
	"github.com/muhammadchandra19/tickstore/internal/domain/candle/v1/mock"
	"github.com/muhammadchandra19/tickstore/pkg/interval"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsecase_StoreBars(t *testing.T) {
	bars := []candlev1.Bar{
		{WindowStart: 60_000_000, Open: 1, High: 2, Low: 1, Close: 2, Volume: 3, TradeCount: 2},
	}

	testCases := []struct {
		name     string
		bars     []candlev1.Bar
		mockFn   func(repo *mock.MockRepository)
		assertFn func(t *testing.T, err error)
	}{
		{
			name: "success",
			bars: bars,
			mockFn: func(repo *mock.MockRepository) {
				repo.EXPECT().StoreBatch(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, records []*candlev1.BarRecord) error {
						require.Len(t, records, 1)
						assert.Equal(t, "bnc_btc_eth", records[0].Symbol)
						assert.Equal(t, "1m", records[0].Interval)
						assert.Equal(t, time.Unix(60, 0).UTC(), records[0].Timestamp)
						assert.Equal(t, bars[0], records[0].Bar)
						return nil
					})
			},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name:   "no bars skips the repository",
			mockFn: func(repo *mock.MockRepository) {},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "repository error",
			bars: bars,
			mockFn: func(repo *mock.MockRepository) {
				repo.EXPECT().StoreBatch(gomock.Any(), gomock.Any()).Return(errors.New("copy failed"))
			},
			assertFn: func(t *testing.T, err error) {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), "copy failed")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := mock.NewMockRepository(ctrl)
			tc.mockFn(repo)

			uc := NewUsecase(repo, logger.NewNopLogger())
			err := uc.StoreBars(context.Background(), "bnc_btc_eth", interval.Interval1m, tc.bars)
			tc.assertFn(t, err)
		})
	}
}

func TestUsecase_Latest(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mock.NewMockRepository(ctrl)
	uc := NewUsecase(repo, logger.NewNopLogger())

	expected := &candlev1.BarRecord{Symbol: "bnc_btc_eth", Interval: "5m"}
	repo.EXPECT().GetLatest(gomock.Any(), "bnc_btc_eth", "5m").Return(expected, nil)
	bar, err := uc.Latest(context.Background(), "bnc_btc_eth", interval.Interval5m)
	require.NoError(t, err)
	assert.Equal(t, expected, bar)

	repo.EXPECT().GetLatest(gomock.Any(), "bnc_btc_eth", "5m").Return(nil, errors.New("down"))
	_, err = uc.Latest(context.Background(), "bnc_btc_eth", interval.Interval5m)
	assert.Error(t, err)
}

func TestUsecase_History(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := mock.NewMockRepository(ctrl)
	uc := NewUsecase(repo, logger.NewNopLogger())

	filter := candlev1.Filter{Symbol: "bnc_btc_eth", Interval: "1m", Limit: 5}
	repo.EXPECT().GetByFilter(gomock.Any(), filter).Return([]*candlev1.BarRecord{{}, {}}, nil)
	bars, err := uc.History(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, bars, 2)

	repo.EXPECT().GetByFilter(gomock.Any(), filter).Return(nil, errors.New("down"))
	_, err = uc.History(context.Background(), filter)
	assert.Error(t, err)
}

func TestUsecase_Rollup(t *testing.T) {
	from, to := time.Unix(0, 0).UTC(), time.Unix(600, 0).UTC()
	minute := func(m uint64, price, volume float64) *candlev1.BarRecord {
		bar := candlev1.NewBar(m*60_000_000, price, volume)
		return &candlev1.BarRecord{Symbol: "bnc_btc_eth", Interval: "1m", Timestamp: interval.ToTime(bar.WindowStart), Bar: bar}
	}
	filter := candlev1.Filter{Symbol: "bnc_btc_eth", Interval: "1m", From: &from, To: &to}

	testCases := []struct {
		name     string
		mockFn   func(repo *mock.MockRepository)
		assertFn func(t *testing.T, n int, err error)
	}{
		{
			name: "success",
			mockFn: func(repo *mock.MockRepository) {
				// Newest first, the way the repository returns them.
				repo.EXPECT().GetByFilter(gomock.Any(), filter).Return([]*candlev1.BarRecord{
					minute(6, 12, 1), minute(4, 9, 2), minute(1, 11, 1), minute(0, 10, 1),
				}, nil)
				repo.EXPECT().StoreBatch(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ context.Context, records []*candlev1.BarRecord) error {
						require.Len(t, records, 2)
						assert.Equal(t, "5m", records[0].Interval)
						assert.Equal(t, candlev1.Bar{WindowStart: 0, Open: 10, High: 11, Low: 9, Close: 9, Volume: 4, TradeCount: 3}, records[0].Bar)
						assert.Equal(t, time.Unix(300, 0).UTC(), records[1].Timestamp)
						assert.Equal(t, 12.0, records[1].Open)
						return nil
					})
			},
			assertFn: func(t *testing.T, n int, err error) {
				require.NoError(t, err)
				assert.Equal(t, 2, n)
			},
		},
		{
			name: "no stored bars",
			mockFn: func(repo *mock.MockRepository) {
				repo.EXPECT().GetByFilter(gomock.Any(), filter).Return(nil, nil)
			},
			assertFn: func(t *testing.T, n int, err error) {
				require.NoError(t, err)
				assert.Zero(t, n)
			},
		},
		{
			name: "read error",
			mockFn: func(repo *mock.MockRepository) {
				repo.EXPECT().GetByFilter(gomock.Any(), filter).Return(nil, errors.New("down"))
			},
			assertFn: func(t *testing.T, n int, err error) {
				assert.Error(t, err)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := mock.NewMockRepository(ctrl)
			tc.mockFn(repo)

			uc := NewUsecase(repo, logger.NewNopLogger())
			n, err := uc.Rollup(context.Background(), "bnc_btc_eth", interval.Interval1m, interval.Interval5m, from, to)
			tc.assertFn(t, n, err)
		})
	}

	t.Run("destination finer than source", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := mock.NewMockRepository(ctrl)
		hourly := candlev1.Filter{Symbol: "bnc_btc_eth", Interval: "1h", From: &from, To: &to}
		repo.EXPECT().GetByFilter(gomock.Any(), hourly).Return([]*candlev1.BarRecord{minute(0, 10, 1)}, nil)

		uc := NewUsecase(repo, logger.NewNopLogger())
		_, err := uc.Rollup(context.Background(), "bnc_btc_eth", interval.Interval1h, interval.Interval5m, from, to)
		assert.ErrorIs(t, err, candlev1.ErrInvalidWindow)
	})
}
