package candle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/jackc/pgx/v5"
	candlev1 "github.com/muhammadchandra19/tickstore/internal/domain/candle/v1"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	mockQuestdb "github.com/muhammadchandra19/tickstore/pkg/questdb/mock"
	"github.com/stretchr/testify/assert"
)

func testBar(ts time.Time) *candlev1.BarRecord {
	return &candlev1.BarRecord{
		Timestamp: ts,
		Symbol:    "bnc_btc_eth",
		Interval:  "1m",
		Bar: candlev1.Bar{
			WindowStart: uint64(ts.UnixMicro()),
			Open:        10000,
			High:        10500,
			Low:         9000,
			Close:       10200,
			Volume:      12.5,
			TradeCount:  100,
		},
	}
}

func fillRow(ts time.Time) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*time.Time) = ts
		*dest[1].(*string) = "bnc_btc_eth"
		*dest[2].(*string) = "1m"
		*dest[3].(*float64) = 10000
		*dest[4].(*float64) = 10500
		*dest[5].(*float64) = 9000
		*dest[6].(*float64) = 10200
		*dest[7].(*float64) = 12.5
		*dest[8].(*int64) = 100
		return nil
	}
}

func TestRepository_Store(t *testing.T) {
	query := `INSERT INTO bars (timestamp, symbol, interval, open, high, low, close, volume, trade_count)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	now := time.Now()

	testCases := []struct {
		name     string
		mockFn   func(testData *candlev1.BarRecord, mock *mockQuestdb.MockQuestDBClient)
		assertFn func(t *testing.T, err error)
	}{
		{
			name: "success",
			mockFn: func(testData *candlev1.BarRecord, mock *mockQuestdb.MockQuestDBClient) {
				mock.EXPECT().Exec(
					gomock.Any(),
					query,
					testData.Timestamp,
					testData.Symbol,
					testData.Interval,
					testData.Open,
					testData.High,
					testData.Low,
					testData.Close,
					testData.Volume,
					int64(testData.TradeCount),
				).Return(nil)
			},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "error - exec fails",
			mockFn: func(testData *candlev1.BarRecord, mock *mockQuestdb.MockQuestDBClient) {
				mock.EXPECT().Exec(gomock.Any(), query, gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(),
					gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(errors.New("exec failed"))
			},
			assertFn: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "exec failed")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := mockQuestdb.NewMockQuestDBClient(ctrl)
			testData := testBar(now)
			tc.mockFn(testData, mockClient)

			repo := NewRepository(mockClient, logger.NewNopLogger())
			tc.assertFn(t, repo.Store(context.Background(), testData))
		})
	}
}

func TestRepository_StoreBatch(t *testing.T) {
	now := time.Now()

	testCases := []struct {
		name     string
		mockFn   func(mock *mockQuestdb.MockQuestDBClient)
		assertFn func(t *testing.T, err error)
		testData []*candlev1.BarRecord
	}{
		{
			name: "success",
			mockFn: func(mock *mockQuestdb.MockQuestDBClient) {
				mock.EXPECT().CopyFrom(gomock.Any(), pgx.Identifier{"bars"}, columns, gomock.Any()).
					DoAndReturn(func(_ context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
						var n int64
						for src.Next() {
							values, err := src.Values()
							assert.NoError(t, err)
							assert.Len(t, values, len(columns))
							assert.Equal(t, int64(100), values[8])
							n++
						}
						return n, nil
					})
			},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
			testData: []*candlev1.BarRecord{testBar(now), testBar(now.Add(time.Minute))},
		},
		{
			name:   "empty batch is a no-op",
			mockFn: func(mock *mockQuestdb.MockQuestDBClient) {},
			assertFn: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "error - copy from fails",
			mockFn: func(mock *mockQuestdb.MockQuestDBClient) {
				mock.EXPECT().CopyFrom(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(int64(0), errors.New("copy from failed"))
			},
			assertFn: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "copy from failed")
			},
			testData: []*candlev1.BarRecord{testBar(now)},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := mockQuestdb.NewMockQuestDBClient(ctrl)
			tc.mockFn(mockClient)

			repo := NewRepository(mockClient, logger.NewNopLogger())
			tc.assertFn(t, repo.StoreBatch(context.Background(), tc.testData))
		})
	}
}

func TestRepository_GetByFilter(t *testing.T) {
	query := selectColumns + " WHERE 1=1"
	now := time.Now().UTC().Truncate(time.Minute)

	testCases := []struct {
		name     string
		mockFn   func(mock *mockQuestdb.MockQuestDBClient, mockRows *mockQuestdb.MockRowsInterface)
		assertFn func(t *testing.T, err error, bars []*candlev1.BarRecord)
		filter   candlev1.Filter
	}{
		{
			name: "success: with all filters",
			mockFn: func(mock *mockQuestdb.MockQuestDBClient, mockRows *mockQuestdb.MockRowsInterface) {
				mock.EXPECT().Query(
					gomock.Any(),
					query+" AND symbol = $1 AND interval = $2 AND timestamp >= $3 AND timestamp <= $4 ORDER BY timestamp DESC LIMIT $5",
					[]interface{}{"bnc_btc_eth", "1m", now, now, 10},
				).Return(mockRows, nil)

				mockRows.EXPECT().Next().Return(true)
				mockRows.EXPECT().Scan(gomock.Any()).DoAndReturn(fillRow(now))
				mockRows.EXPECT().Next().Return(false)
				mockRows.EXPECT().Err().Return(nil)
				mockRows.EXPECT().Close()
			},
			filter: candlev1.Filter{Symbol: "bnc_btc_eth", Interval: "1m", From: &now, To: &now, Limit: 10},
			assertFn: func(t *testing.T, err error, bars []*candlev1.BarRecord) {
				assert.NoError(t, err)
				if assert.Len(t, bars, 1) {
					assert.Equal(t, testBar(now), bars[0])
				}
			},
		},
		{
			name: "success: no filters",
			mockFn: func(mock *mockQuestdb.MockQuestDBClient, mockRows *mockQuestdb.MockRowsInterface) {
				mock.EXPECT().Query(gomock.Any(), query+" ORDER BY timestamp DESC").Return(mockRows, nil)

				mockRows.EXPECT().Next().Return(false)
				mockRows.EXPECT().Err().Return(nil)
				mockRows.EXPECT().Close()
			},
			assertFn: func(t *testing.T, err error, bars []*candlev1.BarRecord) {
				assert.NoError(t, err)
				assert.Len(t, bars, 0)
			},
		},
		{
			name: "error: query fails",
			mockFn: func(mock *mockQuestdb.MockQuestDBClient, mockRows *mockQuestdb.MockRowsInterface) {
				mock.EXPECT().Query(gomock.Any(), query+" AND symbol = $1 ORDER BY timestamp DESC", []interface{}{"bnc_btc_eth"}).
					Return(nil, errors.New("query failed"))
			},
			filter: candlev1.Filter{Symbol: "bnc_btc_eth"},
			assertFn: func(t *testing.T, err error, bars []*candlev1.BarRecord) {
				assert.ErrorContains(t, err, "query failed")
			},
		},
		{
			name: "error: scan fails",
			mockFn: func(mock *mockQuestdb.MockQuestDBClient, mockRows *mockQuestdb.MockRowsInterface) {
				mock.EXPECT().Query(gomock.Any(), query+" AND symbol = $1 ORDER BY timestamp DESC", []interface{}{"bnc_btc_eth"}).
					Return(mockRows, nil)

				mockRows.EXPECT().Next().Return(true)
				mockRows.EXPECT().Scan(gomock.Any()).Return(errors.New("scan failed"))
				mockRows.EXPECT().Close()
			},
			filter: candlev1.Filter{Symbol: "bnc_btc_eth"},
			assertFn: func(t *testing.T, err error, bars []*candlev1.BarRecord) {
				assert.ErrorContains(t, err, "scan failed")
			},
		},
		{
			name: "error: rows.Err() fails",
			mockFn: func(mock *mockQuestdb.MockQuestDBClient, mockRows *mockQuestdb.MockRowsInterface) {
				mock.EXPECT().Query(gomock.Any(), query+" AND symbol = $1 ORDER BY timestamp DESC", []interface{}{"bnc_btc_eth"}).
					Return(mockRows, nil)
				mockRows.EXPECT().Next().Return(false)
				mockRows.EXPECT().Err().Return(errors.New("iteration error"))
				mockRows.EXPECT().Close()
			},
			filter: candlev1.Filter{Symbol: "bnc_btc_eth"},
			assertFn: func(t *testing.T, err error, bars []*candlev1.BarRecord) {
				assert.ErrorContains(t, err, "iteration error")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := mockQuestdb.NewMockQuestDBClient(ctrl)
			mockRows := mockQuestdb.NewMockRowsInterface(ctrl)
			tc.mockFn(mockClient, mockRows)

			repo := NewRepository(mockClient, logger.NewNopLogger())
			bars, err := repo.GetByFilter(context.Background(), tc.filter)
			tc.assertFn(t, err, bars)
		})
	}
}

func TestRepository_GetLatest(t *testing.T) {
	query := selectColumns + " WHERE symbol = $1 AND interval = $2 ORDER BY timestamp DESC LIMIT 1"
	now := time.Now().UTC().Truncate(time.Minute)

	testCases := []struct {
		name     string
		mockFn   func(mock *mockQuestdb.MockQuestDBClient, mockRows *mockQuestdb.MockRowsInterface)
		assertFn func(t *testing.T, err error, bar *candlev1.BarRecord)
	}{
		{
			name: "success",
			mockFn: func(mock *mockQuestdb.MockQuestDBClient, mockRows *mockQuestdb.MockRowsInterface) {
				mock.EXPECT().QueryRow(gomock.Any(), query, "bnc_btc_eth", "1m").Return(mockRows)
				mockRows.EXPECT().Scan(gomock.Any()).DoAndReturn(fillRow(now))
			},
			assertFn: func(t *testing.T, err error, bar *candlev1.BarRecord) {
				assert.NoError(t, err)
				assert.Equal(t, testBar(now), bar)
			},
		},
		{
			name: "no rows - returns nil",
			mockFn: func(mock *mockQuestdb.MockQuestDBClient, mockRows *mockQuestdb.MockRowsInterface) {
				mock.EXPECT().QueryRow(gomock.Any(), query, "bnc_btc_eth", "1m").Return(mockRows)
				mockRows.EXPECT().Scan(gomock.Any()).Return(pgx.ErrNoRows)
			},
			assertFn: func(t *testing.T, err error, bar *candlev1.BarRecord) {
				assert.NoError(t, err)
				assert.Nil(t, bar)
			},
		},
		{
			name: "error - scan fails",
			mockFn: func(mock *mockQuestdb.MockQuestDBClient, mockRows *mockQuestdb.MockRowsInterface) {
				mock.EXPECT().QueryRow(gomock.Any(), query, "bnc_btc_eth", "1m").Return(mockRows)
				mockRows.EXPECT().Scan(gomock.Any()).Return(errors.New("query failed"))
			},
			assertFn: func(t *testing.T, err error, bar *candlev1.BarRecord) {
				assert.ErrorContains(t, err, "failed to get latest bar")
				assert.Nil(t, bar)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockClient := mockQuestdb.NewMockQuestDBClient(ctrl)
			mockRows := mockQuestdb.NewMockRowsInterface(ctrl)
			tc.mockFn(mockClient, mockRows)

			repo := NewRepository(mockClient, logger.NewNopLogger())
			bar, err := repo.GetLatest(context.Background(), "bnc_btc_eth", "1m")
			tc.assertFn(t, err, bar)
		})
	}
}
