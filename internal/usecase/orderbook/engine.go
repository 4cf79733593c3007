package orderbook

import (
	"fmt"

	rbt "github.com/emirpasic/gods/trees/redblacktree"
	orderbookv1 "github.com/muhammadchandra19/tickstore/internal/domain/orderbook/v1"
	"github.com/muhammadchandra19/tickstore/pkg/dtf"
	"github.com/shopspring/decimal"
)

// Options represents configuration options for the Engine.
type Options struct {
	TradePolicy orderbookv1.TradePolicy
}

// DefaultEngineOptions returns the default engine options.
func DefaultEngineOptions() *Options {
	return &Options{
		TradePolicy: orderbookv1.TradeDecoupled,
	}
}

// Engine reconstructs the book of one symbol from its update stream.
// It is not safe for concurrent use; run one engine per symbol per goroutine.
type Engine struct {
	bids *rbt.Tree // decimal price -> decimal size, best first
	asks *rbt.Tree

	options *Options
	state   orderbookv1.State
	lastTs  uint64
	lastSeq uint64
}

// NewEngine creates an empty engine. A nil options uses DefaultEngineOptions.
func NewEngine(options *Options) *Engine {
	if options == nil {
		options = DefaultEngineOptions()
	}
	return &Engine{
		bids:    rbt.NewWith(orderbookv1.BidComparator),
		asks:    rbt.NewWith(orderbookv1.AskComparator),
		options: options,
	}
}

// Apply applies one record. Records with an invalid kind, side, price or size
// are rejected with ErrInvalidRecord and leave the book untouched. When the
// record's sequence does not follow the previous one a SequenceGap is returned
// alongside the applied record.
func (e *Engine) Apply(u dtf.Update) (*orderbookv1.SequenceGap, error) {
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", orderbookv1.ErrInvalidRecord, err)
	}

	var gap *orderbookv1.SequenceGap
	if e.state == orderbookv1.StateLive && u.Sequence != e.lastSeq+1 {
		gap = &orderbookv1.SequenceGap{Expected: e.lastSeq + 1, Got: u.Sequence}
	}

	tree := e.side(u.Side)
	price := decimal.NewFromFloat(u.Price)

	switch u.Kind {
	case dtf.KindBookAdd, dtf.KindBookUpdate:
		if u.Size == 0 {
			tree.Remove(price)
		} else {
			tree.Put(price, decimal.NewFromFloat(u.Size))
		}
	case dtf.KindBookDelete:
		tree.Remove(price)
	case dtf.KindTrade:
		if e.options.TradePolicy == orderbookv1.TradeDeplete {
			deplete(tree, price, decimal.NewFromFloat(u.Size))
		}
	}

	e.state = orderbookv1.StateLive
	e.lastTs = u.Timestamp
	e.lastSeq = u.Sequence
	return gap, nil
}

func deplete(tree *rbt.Tree, price, size decimal.Decimal) {
	resting, ok := tree.Get(price)
	if !ok {
		return
	}
	left := resting.(decimal.Decimal).Sub(size)
	if left.Sign() <= 0 {
		tree.Remove(price)
		return
	}
	tree.Put(price, left)
}

func (e *Engine) side(s dtf.Side) *rbt.Tree {
	if s == dtf.SideBid {
		return e.bids
	}
	return e.asks
}

// State returns the lifecycle state of the engine.
func (e *Engine) State() orderbookv1.State {
	return e.state
}

// LastSequence returns the sequence of the last applied record.
func (e *Engine) LastSequence() uint64 {
	return e.lastSeq
}

// LevelSize returns the resting size at price on side, zero if absent.
func (e *Engine) LevelSize(side dtf.Side, price float64) float64 {
	size, ok := e.side(side).Get(decimal.NewFromFloat(price))
	if !ok {
		return 0
	}
	return size.(decimal.Decimal).InexactFloat64()
}

// Len returns the number of bid and ask levels.
func (e *Engine) Len() (bids, asks int) {
	return e.bids.Size(), e.asks.Size()
}

// Snapshot copies the whole book.
func (e *Engine) Snapshot() orderbookv1.Snapshot {
	return e.Depth(0)
}

// Depth copies at most n levels per side; n <= 0 copies everything.
func (e *Engine) Depth(n int) orderbookv1.Snapshot {
	return orderbookv1.Snapshot{
		Timestamp: e.lastTs,
		Sequence:  e.lastSeq,
		Bids:      levels(e.bids, n),
		Asks:      levels(e.asks, n),
	}
}

// Top returns the best bid and best ask. ok is false unless both sides are present.
func (e *Engine) Top() (bid, ask orderbookv1.Level, ok bool) {
	bidNode, askNode := e.bids.Left(), e.asks.Left()
	if bidNode == nil || askNode == nil {
		return bid, ask, false
	}
	return toLevel(bidNode.Key, bidNode.Value), toLevel(askNode.Key, askNode.Value), true
}

// Restore replaces the book with snap, for resuming a replay from a checkpoint.
func (e *Engine) Restore(snap orderbookv1.Snapshot) {
	e.bids.Clear()
	e.asks.Clear()
	for _, l := range snap.Bids {
		if l.Size > 0 {
			e.bids.Put(decimal.NewFromFloat(l.Price), decimal.NewFromFloat(l.Size))
		}
	}
	for _, l := range snap.Asks {
		if l.Size > 0 {
			e.asks.Put(decimal.NewFromFloat(l.Price), decimal.NewFromFloat(l.Size))
		}
	}
	e.lastTs = snap.Timestamp
	e.lastSeq = snap.Sequence
	e.state = orderbookv1.StateEmpty
	if snap.Sequence > 0 || len(snap.Bids) > 0 || len(snap.Asks) > 0 {
		e.state = orderbookv1.StateLive
	}
}

func levels(tree *rbt.Tree, n int) []orderbookv1.Level {
	size := tree.Size()
	if n > 0 && n < size {
		size = n
	}
	out := make([]orderbookv1.Level, 0, size)
	it := tree.Iterator()
	for it.Next() && len(out) < size {
		out = append(out, toLevel(it.Key(), it.Value()))
	}
	return out
}

func toLevel(price, size interface{}) orderbookv1.Level {
	return orderbookv1.Level{
		Price: price.(decimal.Decimal).InexactFloat64(),
		Size:  size.(decimal.Decimal).InexactFloat64(),
	}
}
