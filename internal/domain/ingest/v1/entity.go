package ingestv1

import (
	"fmt"

	"github.com/muhammadchandra19/tickstore/pkg/dtf"
)

// RawEvent is one order-book event as it arrives on the ingest topic.
type RawEvent struct {
	Symbol    string  `json:"symbol"`
	Timestamp uint64  `json:"ts"`
	Sequence  uint64  `json:"seq"`
	Kind      string  `json:"kind"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
}

// ToUpdate converts the event into a validated DTF record.
func (e RawEvent) ToUpdate() (dtf.Update, error) {
	if e.Symbol == "" {
		return dtf.Update{}, fmt.Errorf("%w: event without symbol", dtf.ErrInvalidRecord)
	}
	kind, err := dtf.ParseEventKind(e.Kind)
	if err != nil {
		return dtf.Update{}, fmt.Errorf("%w: %v", dtf.ErrInvalidRecord, err)
	}
	side, err := dtf.ParseSide(e.Side)
	if err != nil {
		return dtf.Update{}, fmt.Errorf("%w: %v", dtf.ErrInvalidRecord, err)
	}

	u := dtf.Update{
		Timestamp: e.Timestamp,
		Sequence:  e.Sequence,
		Kind:      kind,
		Side:      side,
		Price:     e.Price,
		Size:      e.Size,
	}
	if err := u.Validate(); err != nil {
		return dtf.Update{}, err
	}
	return u, nil
}

// FileFinalized announces a DTF file that will not be written again and is
// ready for upload.
type FileFinalized struct {
	Key      string       `json:"key"`
	Path     string       `json:"path"`
	Symbol   string       `json:"symbol"`
	Metadata dtf.Metadata `json:"metadata"`
}
