package events

import (
	"fmt"

	"github.com/muhammadchandra19/tickstore/internal/usecase/orderbook"
	"github.com/muhammadchandra19/tickstore/pkg/dtf"
	"github.com/samber/lo"
)

// Kind is the liquidity event a record stands for.
type Kind uint8

const (
	// Created means resting size at a level grew.
	Created Kind = iota + 1
	// Cancelled means resting size at a level shrank, was restated or removed.
	Cancelled
	// Traded means an execution.
	Traded
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Cancelled:
		return "cancelled"
	case Traded:
		return "traded"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Events holds records split by the liquidity event they represent, each in
// file order.
type Events struct {
	Created   []dtf.Update
	Cancelled []dtf.Update
	Trades    []dtf.Update
}

// Classify compares every book record with the level it replaces. Levels are
// tracked per side.
func Classify(updates []dtf.Update) (*Events, error) {
	book := orderbook.NewEngine(nil)
	out := &Events{}

	for _, u := range updates {
		if u.IsTrade() {
			out.Trades = append(out.Trades, u)
			continue
		}

		prev := book.LevelSize(u.Side, u.Price)
		if _, err := book.Apply(u); err != nil {
			return nil, err
		}

		if u.Kind != dtf.KindBookDelete && u.Size > prev {
			out.Created = append(out.Created, u)
		} else {
			out.Cancelled = append(out.Cancelled, u)
		}
	}
	return out, nil
}

// Of returns the records of kind k.
func (e *Events) Of(k Kind) []dtf.Update {
	switch k {
	case Created:
		return e.Created
	case Cancelled:
		return e.Cancelled
	case Traded:
		return e.Trades
	default:
		return nil
	}
}

// FilterSize returns the records of kind k whose size lies in [from, to].
func (e *Events) FilterSize(k Kind, from, to float64) []dtf.Update {
	return lo.Filter(e.Of(k), func(u dtf.Update, _ int) bool {
		return u.Size >= from && u.Size <= to
	})
}

// ByTimestamp groups the records of kind k by timestamp.
func (e *Events) ByTimestamp(k Kind) map[uint64][]dtf.Update {
	return lo.GroupBy(e.Of(k), func(u dtf.Update) uint64 {
		return u.Timestamp
	})
}
