package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEvents(t *testing.T) {
	start := time.UnixMicro(1_700_000_000_000_000)
	events := generateEvents([]string{"bnc_btc_eth", "bnc_usdt_btc"}, 200, 100, 20, start)
	require.Len(t, events, 400)

	last := map[string][2]uint64{}
	for _, e := range events {
		_, err := e.ToUpdate()
		require.NoError(t, err)

		prev, seen := last[e.Symbol]
		if seen {
			assert.Greater(t, e.Timestamp, prev[0])
			assert.Equal(t, prev[1]+1, e.Sequence)
		} else {
			assert.Equal(t, uint64(1), e.Sequence)
		}
		last[e.Symbol] = [2]uint64{e.Timestamp, e.Sequence}

		if e.Kind == "delete" {
			assert.Zero(t, e.Size)
		}
	}
}

func TestRoundTo(t *testing.T) {
	assert.Equal(t, 3945.6, roundTo(3945.55, 1))
	assert.Equal(t, 1.235, roundTo(1.2349, 3))
	assert.Equal(t, 12.5, parsePrice("12.5"))
	assert.Zero(t, parsePrice("x"))
}
