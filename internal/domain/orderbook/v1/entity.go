package orderbookv1

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidRecord is returned for records the engine cannot apply. The book is
// left unchanged.
var ErrInvalidRecord = errors.New("invalid record")

// State is the lifecycle state of an engine.
type State uint8

const (
	// StateEmpty means no record has been applied yet.
	StateEmpty State = iota
	// StateLive means at least one record has been applied.
	StateLive
)

func (s State) String() string {
	if s == StateLive {
		return "live"
	}
	return "empty"
}

// TradePolicy controls whether trades change resting liquidity.
type TradePolicy uint8

const (
	// TradeDecoupled leaves levels untouched on trades; the feed's own
	// update/delete events carry the depletion.
	TradeDecoupled TradePolicy = iota
	// TradeDeplete subtracts the traded size from the level at the trade
	// price on the trade's side.
	TradeDeplete
)

// Level is the aggregate resting size at one price.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Snapshot is the book at a point of the replay. Bids are ordered by
// descending price, asks by ascending price.
type Snapshot struct {
	Timestamp uint64  `json:"ts"`
	Sequence  uint64  `json:"seq"`
	Bids      []Level `json:"bids"`
	Asks      []Level `json:"asks"`
}

// BestBid returns the highest bid, if any.
func (s Snapshot) BestBid() (Level, bool) {
	if len(s.Bids) == 0 {
		return Level{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask, if any.
func (s Snapshot) BestAsk() (Level, bool) {
	if len(s.Asks) == 0 {
		return Level{}, false
	}
	return s.Asks[0], true
}

// Spread returns best ask minus best bid when both sides are present.
func (s Snapshot) Spread() (float64, bool) {
	bid, okBid := s.BestBid()
	ask, okAsk := s.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask.Price - bid.Price, true
}

// SequenceGap is reported when a record's sequence is not the previous one
// plus one. It is advisory: the record is still applied.
type SequenceGap struct {
	Expected uint64 `json:"expected"`
	Got      uint64 `json:"got"`
}

func (g SequenceGap) String() string {
	return fmt.Sprintf("sequence gap: expected %d, got %d", g.Expected, g.Got)
}

// AskComparator orders decimal prices ascending.
func AskComparator(a, b interface{}) int {
	return a.(decimal.Decimal).Cmp(b.(decimal.Decimal))
}

// BidComparator orders decimal prices descending.
func BidComparator(a, b interface{}) int {
	return b.(decimal.Decimal).Cmp(a.(decimal.Decimal))
}
