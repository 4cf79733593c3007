package dtf

import (
	"fmt"
	"math"
	"strings"
)

// EventKind is the kind of an order-book event.
type EventKind uint8

const (
	// KindBookAdd adds liquidity at a price level.
	KindBookAdd EventKind = iota + 1
	// KindBookUpdate sets the resting size at a price level.
	KindBookUpdate
	// KindBookDelete removes a price level.
	KindBookDelete
	// KindTrade is an execution. It does not change book levels by itself.
	KindTrade
)

// Side is the book side of an event. For trades it is the aggressor side.
type Side uint8

const (
	// SideBid is the buy side.
	SideBid Side = iota + 1
	// SideAsk is the sell side.
	SideAsk
)

// Valid reports whether k is one of the defined kinds.
func (k EventKind) Valid() bool {
	return k >= KindBookAdd && k <= KindTrade
}

// IsBook reports whether k mutates book levels.
func (k EventKind) IsBook() bool {
	return k >= KindBookAdd && k <= KindBookDelete
}

func (k EventKind) String() string {
	switch k {
	case KindBookAdd:
		return "add"
	case KindBookUpdate:
		return "update"
	case KindBookDelete:
		return "delete"
	case KindTrade:
		return "trade"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseEventKind parses the names produced by EventKind.String.
func ParseEventKind(s string) (EventKind, error) {
	switch strings.ToLower(s) {
	case "add":
		return KindBookAdd, nil
	case "update":
		return KindBookUpdate, nil
	case "delete":
		return KindBookDelete, nil
	case "trade":
		return KindTrade, nil
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Valid reports whether s is bid or ask.
func (s Side) Valid() bool {
	return s == SideBid || s == SideAsk
}

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	default:
		return fmt.Sprintf("side(%d)", uint8(s))
	}
}

// ParseSide parses "bid"/"buy" and "ask"/"sell".
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "bid", "buy":
		return SideBid, nil
	case "ask", "sell":
		return SideAsk, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

// Update is one timestamped order-book event for a single symbol.
// Timestamps are epoch microseconds.
type Update struct {
	Timestamp uint64    `json:"ts"`
	Sequence  uint64    `json:"seq"`
	Kind      EventKind `json:"kind"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
}

// Validate checks the field domains of u. The returned error wraps ErrInvalidRecord.
func (u Update) Validate() error {
	switch {
	case !u.Kind.Valid():
		return newError(ErrInvalidRecord, -1, "invalid kind %d", uint8(u.Kind))
	case !u.Side.Valid():
		return newError(ErrInvalidRecord, -1, "invalid side %d", uint8(u.Side))
	case !validQuantity(u.Price):
		return newError(ErrInvalidRecord, -1, "invalid price %v", u.Price)
	case !validQuantity(u.Size):
		return newError(ErrInvalidRecord, -1, "invalid size %v", u.Size)
	}
	return nil
}

// IsBid reports whether u is on the bid side.
func (u Update) IsBid() bool {
	return u.Side == SideBid
}

// IsTrade reports whether u is an execution.
func (u Update) IsTrade() bool {
	return u.Kind == KindTrade
}

func validQuantity(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// flags packs kind and side into one byte: kind in the high nibble.
func (u Update) flags() byte {
	return byte(u.Kind)<<4 | byte(u.Side)
}

func unpackFlags(b byte) (EventKind, Side, bool) {
	kind, side := EventKind(b>>4), Side(b&0x0f)
	return kind, side, kind.Valid() && side.Valid()
}
