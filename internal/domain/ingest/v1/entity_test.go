package ingestv1

import (
	"encoding/json"
	"testing"

	"github.com/muhammadchandra19/tickstore/pkg/dtf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawEvent_ToUpdate(t *testing.T) {
	testCases := []struct {
		name     string
		event    RawEvent
		expected dtf.Update
		err      error
	}{
		{
			name:     "trade",
			event:    RawEvent{Symbol: "bnc_btc_eth", Timestamp: 10, Sequence: 3, Kind: "trade", Side: "buy", Price: 101.5, Size: 2},
			expected: dtf.Update{Timestamp: 10, Sequence: 3, Kind: dtf.KindTrade, Side: dtf.SideBid, Price: 101.5, Size: 2},
		},
		{
			name:     "book delete",
			event:    RawEvent{Symbol: "bnc_btc_eth", Timestamp: 11, Sequence: 4, Kind: "DELETE", Side: "ask", Price: 101.5},
			expected: dtf.Update{Timestamp: 11, Sequence: 4, Kind: dtf.KindBookDelete, Side: dtf.SideAsk, Price: 101.5},
		},
		{name: "missing symbol", event: RawEvent{Kind: "add", Side: "bid"}, err: dtf.ErrInvalidRecord},
		{name: "unknown kind", event: RawEvent{Symbol: "bnc_btc_eth", Kind: "cancel", Side: "bid"}, err: dtf.ErrInvalidRecord},
		{name: "unknown side", event: RawEvent{Symbol: "bnc_btc_eth", Kind: "add", Side: "mid"}, err: dtf.ErrInvalidRecord},
		{name: "negative size", event: RawEvent{Symbol: "bnc_btc_eth", Kind: "add", Side: "bid", Price: 1, Size: -1}, err: dtf.ErrInvalidRecord},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := tc.event.ToUpdate()
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, u)
		})
	}
}

func TestRawEvent_JSON(t *testing.T) {
	var ev RawEvent
	require.NoError(t, json.Unmarshal([]byte(`{"symbol":"bnc_btc_eth","ts":1700000000000000,"seq":9,"kind":"add","side":"bid","price":0.0521,"size":3}`), &ev))
	assert.Equal(t, RawEvent{Symbol: "bnc_btc_eth", Timestamp: 1700000000000000, Sequence: 9, Kind: "add", Side: "bid", Price: 0.0521, Size: 3}, ev)
}
